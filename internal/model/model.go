// Package model holds the entities persisted by the repository layer.
package model

import "fmt"

// Smile is a reaction tag (e.g. "funny") that comments can reference.
//
// ID is assigned by the store on insert and never changes afterwards.
type Smile struct {
	ID    int64  `db:"id"`
	Value string `db:"value"`
}

func (s Smile) String() string {
	return fmt.Sprintf("Smile{id=%d, value=%q}", s.ID, s.Value)
}

// Comment is free text with an ordered list of references to stored smiles.
//
// Smiles must already exist in the store when the comment is written;
// writing a comment never creates smile rows.
type Comment struct {
	ID      int64   `db:"id"`
	Content string  `db:"content"`
	Smiles  []Smile `db:"-"`
}

func (c Comment) String() string {
	ids := make([]int64, len(c.Smiles))
	for i, s := range c.Smiles {
		ids[i] = s.ID
	}
	return fmt.Sprintf("Comment{id=%d, content=%q, smiles=%v}", c.ID, c.Content, ids)
}
