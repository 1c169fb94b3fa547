// Package db opens the SQL connections behind the sqlstore package.
package db

import "github.com/jmoiron/sqlx"

// Pool provides separate read and write database connections.
//
// SQLite in WAL mode supports many concurrent readers alongside exactly
// one writer, so the writer pool is capped at a single connection while
// the reader pool fans out. PostgreSQL pools connections internally, so
// both sides share one *sqlx.DB there.
type Pool struct {
	writer *sqlx.DB
	reader *sqlx.DB
}

// NewPool creates a Pool from separate writer and reader connections.
func NewPool(writer, reader *sqlx.DB) *Pool {
	return &Pool{writer: writer, reader: reader}
}

// Writer returns the pool used for INSERT, UPDATE, DELETE, and
// transactions.
func (p *Pool) Writer() *sqlx.DB { return p.writer }

// Reader returns the pool used for SELECT queries.
func (p *Pool) Reader() *sqlx.DB { return p.reader }

// Close closes both pools.
func (p *Pool) Close() error {
	wErr := p.writer.Close()
	// Both sides share one *sqlx.DB on Postgres; close it once.
	if p.reader != p.writer {
		if rErr := p.reader.Close(); rErr != nil && wErr == nil {
			return rErr
		}
	}
	return wErr
}
