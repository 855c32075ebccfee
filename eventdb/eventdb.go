// Copyright (c) 2024 The Lido developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package eventdb persists registry events into sqlite, giving operators
// and tooling a queryable audit trail of every successful mutation.
package eventdb

import (
	"database/sql"
	"encoding/json"
	"time"

	// sqlite3 driver
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/mvp1983/lido-dao/builtin/registry"
)

const schema = `CREATE TABLE IF NOT EXISTS events (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	operator INTEGER NOT NULL,
	data TEXT,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS events_name ON events(name);
CREATE INDEX IF NOT EXISTS events_operator ON events(operator);`

var _ registry.EventSink = (*EventDB)(nil)

// EventDB is the sqlite-backed event log.
type EventDB struct {
	db *sql.DB
}

// New opens or creates the event db at the given path.
func New(path string) (*EventDB, error) {
	return open("file:" + path + "?_journal=wal")
}

// NewMem creates an in-memory event db, for tests.
func NewMem() (*EventDB, error) {
	return open("file::memory:?mode=memory&cache=shared")
}

func open(dsn string) (*EventDB, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open event db")
	}
	// sqlite serializes writers; one connection avoids lock contention
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "init event db schema")
	}
	return &EventDB{db: db}, nil
}

// Close closes the underlying database.
func (e *EventDB) Close() error {
	return e.db.Close()
}

// Record writes all events of one mutation in a single transaction.
func (e *EventDB) Record(events []registry.Event) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := e.db.Begin()
	if err != nil {
		return errors.Wrap(err, "record events")
	}
	stmt, err := tx.Prepare("INSERT INTO events(name, operator, data, created_at) VALUES(?, ?, ?, ?)")
	if err != nil {
		_ = tx.Rollback()
		return errors.Wrap(err, "record events")
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, event := range events {
		data, err := json.Marshal(event.Data)
		if err != nil {
			_ = tx.Rollback()
			return errors.Wrap(err, "encode event data")
		}
		if _, err := stmt.Exec(event.Name, int64(event.Operator), string(data), now); err != nil {
			_ = tx.Rollback()
			return errors.Wrap(err, "record events")
		}
	}
	return tx.Commit()
}

// StoredEvent is one persisted event row.
type StoredEvent struct {
	Seq       int64             `json:"seq"`
	Name      string            `json:"name"`
	Operator  registry.ID       `json:"operator"`
	Data      map[string]string `json:"data,omitempty"`
	CreatedAt int64             `json:"createdAt"`
}

// Filter narrows a query. Zero values mean "any".
type Filter struct {
	Name     string
	Operator *registry.ID
	Limit    uint64
	Offset   uint64
}

// Query returns stored events matching the filter in insertion order.
func (e *EventDB) Query(filter *Filter) ([]*StoredEvent, error) {
	query := "SELECT seq, name, operator, data, created_at FROM events"
	var args []any
	var conds []string
	if filter.Name != "" {
		conds = append(conds, "name = ?")
		args = append(args, filter.Name)
	}
	if filter.Operator != nil {
		conds = append(conds, "operator = ?")
		args = append(args, int64(*filter.Operator))
	}
	for i, cond := range conds {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY seq"
	limit := filter.Limit
	if limit == 0 {
		limit = 1000
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, int64(limit), int64(filter.Offset))

	rows, err := e.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query events")
	}
	defer rows.Close()

	var events []*StoredEvent
	for rows.Next() {
		var (
			event    StoredEvent
			operator int64
			data     string
		)
		if err := rows.Scan(&event.Seq, &event.Name, &operator, &data, &event.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan event")
		}
		event.Operator = registry.ID(operator)
		if data != "" {
			if err := json.Unmarshal([]byte(data), &event.Data); err != nil {
				return nil, errors.Wrap(err, "decode event data")
			}
		}
		events = append(events, &event)
	}
	return events, rows.Err()
}
