// Package sqlcli provides the data-marshalling core of a SQL call-level interface.
package sqlcli

import (
	"context"
	"database/sql/driver"
	"sync"
	"sync/atomic"
)

// tx implements database/sql/driver.Tx interface.
type tx struct {
	conn     *Connection
	finished atomic.Bool
	mu       sync.Mutex
}

func (tx *tx) Commit() error {
	return tx.finish(true)
}

func (tx *tx) Rollback() error {
	return tx.finish(false)
}

// finish ends the transaction once; later calls are no-ops.
func (tx *tx) finish(commit bool) error {
	if atomic.LoadInt32(&tx.conn.closed) != 0 {
		return driver.ErrBadConn
	}

	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.finished.Load() {
		return nil
	}
	tx.finished.Store(true)

	if t, ok := tx.conn.cli.(Transactor); ok {
		tx.conn.mu.Lock()
		defer tx.conn.mu.Unlock()
		if commit {
			return t.Commit()
		}
		return t.Rollback()
	}

	query := "ROLLBACK"
	if commit {
		query = "COMMIT"
	}
	_, err := tx.conn.ExecContext(context.Background(), query, nil)
	return err
}
