package sqlerr

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/deppfellow/comment-smiles/internal/errs"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrCode reports the mapped sqlerr.Code for a given error.
//
// Behavior:
//   - If err can be unwrapped into *sqlerr.Error, return its Code.
//   - If err can be unwrapped into *pgconn.PgError, map its SQLSTATE.
//   - Otherwise return sqlerr.Other.
func ErrCode(err error) Code {
	var sqlErr *Error
	if errors.As(err, &sqlErr) {
		return sqlErr.Code
	}
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) {
		return MapCode(pgerr.Code)
	}
	return Other
}

// ConvertPgError converts a pgconn.PgError (raw Postgres error) into our custom sqlerr.Error.
//
// We map SQLSTATE + Severity into our enums for easier switching.
func ConvertPgError(src *pgconn.PgError) *Error {
	return &Error{
		Code:           MapCode(src.Code),
		Severity:       MapSeverity(src.Severity),
		DatabaseCode:   src.Code,
		Message:        src.Message,
		Detail:         src.Detail,
		SchemaName:     src.SchemaName,
		TableName:      src.TableName,
		ColumnName:     src.ColumnName,
		DataTypeName:   src.DataTypeName,
		ConstraintName: src.ConstraintName,
		driverErr:      src,
	}
}

// generateErrorCode creates consistent error codes from DB errors.
//
// Output format:
//
//	<ENTITY>_<ACTION>
//
// Example:
//
//	comment_smile.smile_id + ForeignKeyViolation => SMILE_NOT_FOUND
//
// ENTITY comes from getEntityName, so a foreign key column names the
// referenced entity rather than the junction table.
func generateErrorCode(sqlErr *Error) string {
	domain := errs.MakeUpperCaseWithUnderscores(getEntityName(sqlErr.TableName, sqlErr.ColumnName))

	action := "ERROR"
	switch sqlErr.Code {
	case ForeignKeyViolation:
		action = "NOT_FOUND"
	case UniqueViolation:
		action = "ALREADY_EXISTS"
	case NotNullViolation:
		action = "REQUIRED"
	case CheckViolation:
		action = "INVALID"
	}

	return fmt.Sprintf("%s_%s", domain, action)
}

// formatUserFriendlyMessage produces a human-readable error message.
//
// It uses table/column info to phrase messages in a more human way.
func formatUserFriendlyMessage(sqlErr *Error) string {
	entityName := getEntityName(sqlErr.TableName, sqlErr.ColumnName)

	switch sqlErr.Code {
	case ForeignKeyViolation:
		// Example: "The referenced Smile does not exist"
		return fmt.Sprintf("The referenced %s does not exist", entityName)

	case UniqueViolation:
		// Placeholder word "identifier" is later replaced if we can infer a column name.
		return fmt.Sprintf("A %s with this identifier already exists", entityName)

	case NotNullViolation:
		fieldName := humanizeText(sqlErr.ColumnName)
		if fieldName == "" {
			fieldName = "field"
		}
		return fmt.Sprintf("The %s is required", fieldName)

	case CheckViolation:
		fieldName := humanizeText(sqlErr.ColumnName)
		if fieldName != "" {
			return fmt.Sprintf("The %s value does not meet required conditions", fieldName)
		}
		return "One or more values do not meet required conditions"

	case ConnectionFailure:
		return "The database is unreachable"

	case SerializationFailure, LockNotAvailable:
		return "The operation conflicted with a concurrent transaction"

	default:
		return "An error occurred while processing your request"
	}
}

// getEntityName tries to infer an entity name from table/column data.
//
// Priority rules:
//  1. If column ends with "_id", use that base name. (Best for FK relations)
//     e.g. "smile_id" -> "Smile"
//  2. Otherwise use table name, singularized if it ends with "s".
//  3. Otherwise fallback to "record".
func getEntityName(tableName, columnName string) string {
	if columnName != "" && strings.HasSuffix(strings.ToLower(columnName), "_id") {
		entity := strings.TrimSuffix(strings.ToLower(columnName), "_id")
		return humanizeText(entity)
	}

	if tableName != "" {
		entity := tableName
		if strings.HasSuffix(entity, "s") && len(entity) > 1 {
			entity = entity[:len(entity)-1]
		}
		return humanizeText(entity)
	}

	return "record"
}

// humanizeText converts snake_case identifiers into Title Case.
//
// Example:
//
//	"comment_smile" -> "Comment Smile"
func humanizeText(text string) string {
	if text == "" {
		return ""
	}
	return cases.Title(language.English).String(strings.ReplaceAll(text, "_", " "))
}

var (
	uniqueKeyRe  = regexp.MustCompile(`_([^_]+)_(?:key|ukey)$`)
	keyDetailRe  = regexp.MustCompile(`^Key \(([^)]+)\)=`)
	foreignKeyRe = regexp.MustCompile(`^(?:[^_]+_)*?([^_]+_id)_fkey$`)
)

// extractColumnForUniqueViolation tries to infer the column name from a unique constraint name.
//
// It supports two conventions:
//
//  1. "unique_<table>_<column>"
//     Example: unique_smile_value -> "value"
//
//  2. "<table>_<column>_(key|ukey)"
//     Example: smile_value_key -> "value"
func extractColumnForUniqueViolation(constraintName string) string {
	if constraintName == "" {
		return ""
	}

	if strings.HasPrefix(constraintName, "unique_") {
		parts := strings.Split(constraintName, "_")
		if len(parts) >= 3 {
			return parts[len(parts)-1]
		}
	}

	matches := uniqueKeyRe.FindStringSubmatch(constraintName)
	if len(matches) > 1 {
		return matches[1]
	}

	return ""
}

// extractColumnForForeignKeyViolation finds the referencing column of a
// foreign key violation. Postgres leaves ColumnName empty for these, so the
// column is read from the detail ("Key (smile_id)=(9) is not present ...")
// or, failing that, from a "<table>_<column>_fkey" constraint name.
func extractColumnForForeignKeyViolation(detail, constraintName string) string {
	if matches := keyDetailRe.FindStringSubmatch(detail); len(matches) > 1 {
		return strings.TrimSpace(strings.Split(matches[1], ",")[0])
	}
	if matches := foreignKeyRe.FindStringSubmatch(constraintName); len(matches) > 1 {
		return matches[1]
	}
	return ""
}

// HandleError converts a low-level database error into a *errs.PersistenceError.
//
// Inputs:
//   - op: the attempted operation, e.g. "create comment"
//   - subject: the identifying argument (entity or id)
//   - err: the error returned by pgx
//
// Output:
//   - nil if err is nil
//   - If already *errs.PersistenceError: returned unchanged
//   - If pgconn.PgError: code and message derived from the violated constraint
//   - If errs.ErrNotFound / pgx.ErrNoRows: <ENTITY>_NOT_FOUND
//   - If the context was cancelled: CANCELLED
//   - Otherwise: INTERNAL_ERROR
func HandleError(op string, subject any, err error) error {
	if err == nil {
		return nil
	}

	// Don't re-wrap: the innermost operation already described the failure.
	var persistenceErr *errs.PersistenceError
	if errors.As(err, &persistenceErr) {
		return err
	}

	base := errs.New(op, subject, err)

	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) {
		sqlErr := ConvertPgError(pgerr)

		if sqlErr.Code == ForeignKeyViolation && sqlErr.ColumnName == "" {
			sqlErr.ColumnName = extractColumnForForeignKeyViolation(sqlErr.Detail, sqlErr.ConstraintName)
		}

		errorCode := generateErrorCode(sqlErr)
		userMessage := formatUserFriendlyMessage(sqlErr)

		switch sqlErr.Code {
		case UniqueViolation:
			if columnName := extractColumnForUniqueViolation(sqlErr.ConstraintName); columnName != "" {
				userMessage = strings.ReplaceAll(userMessage, "identifier", humanizeText(columnName))
			}
		case Other:
			// Unknown database errors keep the generic internal code.
			return base
		}

		return base.WithCode(errorCode, userMessage)
	}

	switch {
	case errors.Is(err, errs.ErrNotFound), errors.Is(err, pgx.ErrNoRows):
		entity := entityFromOp(op)
		return base.WithCode(
			errs.MakeUpperCaseWithUnderscores(entity)+"_NOT_FOUND",
			fmt.Sprintf("%s not found", humanizeText(entity)),
		)

	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return base.WithCode("CANCELLED", "The operation was cancelled")
	}

	return base
}

// entityFromOp takes the entity out of an operation description:
// "remove comment" -> "comment".
func entityFromOp(op string) string {
	fields := strings.Fields(op)
	if len(fields) < 2 {
		return "record"
	}
	return fields[1]
}
