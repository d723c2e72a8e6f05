// Package testutil provides helpers for tests that need a database.
package testutil

import (
	"database/sql"
	"fmt"

	"github.com/krashnark/gw2tracker/internal/app/storage"
)

// New creates and returns a database in memory for tests.
func New() (*sql.DB, *storage.Storage) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		panic(err)
	}
	if err := storage.ApplyMigrations(db); err != nil {
		panic(err)
	}
	return db, storage.New(db)
}

// TruncateTables purges data from all tables. This is meant for tests.
func TruncateTables(db *sql.DB) {
	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type = "table"`)
	if err != nil {
		panic(err)
	}
	defer rows.Close()
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			panic(err)
		}
		tables = append(tables, name)
	}
	for _, n := range tables {
		if _, err := db.Exec(fmt.Sprintf("DELETE FROM %s;", n)); err != nil {
			panic(err)
		}
	}
	for _, n := range tables {
		if _, err := db.Exec(fmt.Sprintf("DELETE FROM SQLITE_SEQUENCE WHERE name='%s'", n)); err != nil {
			panic(err)
		}
	}
}
