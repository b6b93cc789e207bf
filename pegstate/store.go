package pegstate

import (
	"context"
	"database/sql"
	"errors"

	"github.com/TEENet-io/sbtc-bridge/database"
)

// StateKey is the document key of the peg state.
const StateKey = "peg-state"

// Store keeps one JSON document per key. A missing document is not an
// error: Load reports found == false.
type Store interface {
	Load(ctx context.Context, key string) (doc []byte, found bool, err error)
	Save(ctx context.Context, key string, doc []byte) error
}

// LoadState reads the peg state, Uninitialized when nothing was saved yet.
func LoadState(ctx context.Context, store Store) (State, error) {
	doc, found, err := store.Load(ctx, StateKey)
	if err != nil {
		return nil, err
	}
	if !found {
		return &Uninitialized{}, nil
	}
	return Unmarshal(doc)
}

func SaveState(ctx context.Context, store Store, s State) error {
	doc, err := Marshal(s)
	if err != nil {
		return err
	}
	return store.Save(ctx, StateKey, doc)
}

var docTable = `CREATE TABLE IF NOT EXISTS document (
	key VARCHAR(64) PRIMARY KEY NOT NULL,
	doc BLOB NOT NULL,
	CONSTRAINT chk_key CHECK (key != '')
);`

// SQLStore keeps documents in a sqlite table.
type SQLStore struct {
	stmtCache *database.StmtCache
}

func NewSQLStore(db *sql.DB) (*SQLStore, error) {
	if _, err := db.Exec(docTable); err != nil {
		return nil, err
	}

	return &SQLStore{
		stmtCache: database.NewStmtCache(db),
	}, nil
}

func (st *SQLStore) Close() {
	st.stmtCache.Clear()
}

func (st *SQLStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	stmt, err := st.stmtCache.Prepare(`SELECT doc FROM document WHERE key = ?`)
	if err != nil {
		return nil, false, err
	}

	var doc []byte
	if err := stmt.QueryRowContext(ctx, key).Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return doc, true, nil
}

func (st *SQLStore) Save(ctx context.Context, key string, doc []byte) error {
	stmt, err := st.stmtCache.Prepare(`INSERT OR REPLACE INTO document (key, doc) VALUES (?, ?)`)
	if err != nil {
		return err
	}

	_, err = stmt.ExecContext(ctx, key, doc)
	return err
}
