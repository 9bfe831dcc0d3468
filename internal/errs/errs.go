// Package errs define custom error types and utilities.
//
// Its purpose is to give every failure that crosses the
// repository boundary a single, predictable shape
// (PersistenceError) so callers never have to inspect
// raw driver errors.
package errs
