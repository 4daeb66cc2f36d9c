// Package storage provides audit.Storage backends.
//
// MemoryStorage keeps records in a map and suits tests and ephemeral runs.
// SQLiteStorage persists to a SQLite file through mattn/go-sqlite3 with WAL
// enabled. Both order by Seq and treat a duplicate Seq as an error, which
// keeps two writers from forking the chain.
package storage
