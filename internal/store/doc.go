// Package store is the Postgres implementation of the user and verification
// persistence used by the auth package. Sessions live in the same database
// through session.DatabaseStore; the schema for all three tables is the
// embedded goose migration set.
package store
