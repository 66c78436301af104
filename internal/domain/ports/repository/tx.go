package repository

// Tx is an optional transaction handle passed through repository calls.
// The concrete type is backend-defined (pgx.Tx for Postgres, *sql.Tx for
// SQLite). Repositories MUST accept nil and fall back to their pool.
type Tx interface{}

var NoTX interface{}
