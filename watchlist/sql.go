package watchlist

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// SQL stores a watchlist in an SQLite database.
type SQL struct {
	db  *sqlitex.Pool
	dsn string
}

// OpenSQL uses an existing watchlist table in db. dsn describes the database
// for logs.
func OpenSQL(db *sqlitex.Pool, dsn string) *SQL {
	return &SQL{db: db, dsn: dsn}
}

// Init creates the watchlist table in an SQL database if it doesn't exist.
// For convenience, it accepts either a single connection or a pool.
func Init[DB *sqlite.Conn | *sqlitex.Pool](ctx context.Context, db DB) error {
	var conn *sqlite.Conn
	switch db := any(db).(type) {
	case *sqlite.Conn:
		conn = db
	case *sqlitex.Pool:
		var err error
		conn, err = db.Take(ctx)
		defer db.Put(conn)
		if err != nil {
			return fmt.Errorf("couldn't get connection from pool: %w", err)
		}
	}
	err := sqlitex.ExecuteTransient(conn, `CREATE TABLE IF NOT EXISTS watchlist (nick TEXT PRIMARY KEY) STRICT, WITHOUT ROWID`, nil)
	return err
}

// Load returns all stored nicknames.
func (s *SQL) Load(ctx context.Context) ([]string, error) {
	conn, err := s.db.Take(ctx)
	defer s.db.Put(conn)
	if err != nil {
		return nil, fmt.Errorf("couldn't get connection to load watchlist: %w", err)
	}
	var r []string
	opts := sqlitex.ExecOptions{
		ResultFunc: func(st *sqlite.Stmt) error {
			r = append(r, st.ColumnText(0))
			return nil
		},
	}
	if err := sqlitex.Execute(conn, `SELECT nick FROM watchlist ORDER BY nick`, &opts); err != nil {
		return nil, fmt.Errorf("couldn't load watchlist: %w", err)
	}
	return r, nil
}

// Store replaces the stored nicknames in a single transaction.
func (s *SQL) Store(ctx context.Context, nicks []string) (err error) {
	conn, err := s.db.Take(ctx)
	defer s.db.Put(conn)
	if err != nil {
		return fmt.Errorf("couldn't get connection to store watchlist: %w", err)
	}
	defer sqlitex.Transaction(conn)(&err)
	if err := sqlitex.Execute(conn, `DELETE FROM watchlist`, nil); err != nil {
		return fmt.Errorf("couldn't clear watchlist: %w", err)
	}
	st, err := conn.Prepare(`INSERT INTO watchlist (nick) VALUES (:nick)`)
	if err != nil {
		return fmt.Errorf("couldn't prepare watchlist insert: %w", err)
	}
	for _, n := range nicks {
		st.SetText(":nick", n)
		if _, err := st.Step(); err != nil {
			return fmt.Errorf("couldn't insert %q into watchlist: %w", n, err)
		}
		st.Reset()
	}
	return nil
}

func (s *SQL) String() string {
	return "sqlite:" + s.dsn
}
