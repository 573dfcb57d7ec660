package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
)

// reply is the scripted answer to the next statement containing match.
type reply struct {
	match    string
	columns  []string
	rows     [][]driver.Value
	affected int64
	err      error
}

// scripted is a database/sql driver that answers statements in order
// from a fixed script and records what it was asked.
type scripted struct {
	mu      sync.Mutex
	replies []reply
	seen    []string
}

func newScriptedDB(t *testing.T, replies ...reply) (*sql.DB, *scripted) {
	t.Helper()
	s := &scripted{replies: replies}
	db := sql.OpenDB(s)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db, s
}

func (s *scripted) Connect(context.Context) (driver.Conn, error) { return &scriptedConn{s: s}, nil }
func (s *scripted) Open(string) (driver.Conn, error)             { return &scriptedConn{s: s}, nil }
func (s *scripted) Driver() driver.Driver                        { return s }

func (s *scripted) next(query string) (reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, strings.Join(strings.Fields(query), " "))
	if len(s.replies) == 0 {
		return reply{}, fmt.Errorf("unexpected statement: %s", query)
	}
	r := s.replies[0]
	if !strings.Contains(query, r.match) {
		return reply{}, fmt.Errorf("statement %q does not contain %q", query, r.match)
	}
	s.replies = s.replies[1:]
	return r, r.err
}

// Statements returns every statement issued so far with whitespace folded.
func (s *scripted) Statements() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.seen...)
}

// Pending returns the number of replies nobody asked for.
func (s *scripted) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.replies)
}

type scriptedConn struct{ s *scripted }

func (c *scriptedConn) Prepare(query string) (driver.Stmt, error) {
	return &scriptedStmt{s: c.s, query: query}, nil
}

func (c *scriptedConn) Close() error { return nil }

func (c *scriptedConn) Begin() (driver.Tx, error) {
	if _, err := c.s.next("BEGIN"); err != nil {
		return nil, err
	}
	return scriptedTx{s: c.s}, nil
}

type scriptedTx struct{ s *scripted }

func (t scriptedTx) Commit() error {
	_, err := t.s.next("COMMIT")
	return err
}

func (t scriptedTx) Rollback() error {
	_, err := t.s.next("ROLLBACK")
	return err
}

type scriptedStmt struct {
	s     *scripted
	query string
}

func (st *scriptedStmt) Close() error  { return nil }
func (st *scriptedStmt) NumInput() int { return -1 }

func (st *scriptedStmt) Exec([]driver.Value) (driver.Result, error) {
	r, err := st.s.next(st.query)
	if err != nil {
		return nil, err
	}
	return driver.RowsAffected(r.affected), nil
}

func (st *scriptedStmt) Query([]driver.Value) (driver.Rows, error) {
	r, err := st.s.next(st.query)
	if err != nil {
		return nil, err
	}
	return &scriptedRows{columns: r.columns, rows: r.rows}, nil
}

type scriptedRows struct {
	columns []string
	rows    [][]driver.Value
}

func (r *scriptedRows) Columns() []string { return r.columns }
func (r *scriptedRows) Close() error      { return nil }

func (r *scriptedRows) Next(dest []driver.Value) error {
	if len(r.rows) == 0 {
		return io.EOF
	}
	copy(dest, r.rows[0])
	r.rows = r.rows[1:]
	return nil
}
