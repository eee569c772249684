package db

import (
	"database/sql"
	_ "embed"
	"errors"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

var (
	mu sync.RWMutex
	db *sql.DB

	//go:embed schema.sql
	schema string
)

var ErrNotOpen = errors.New("alert journal is not open")

// Init opens the journal at dsn and creates the schema.
func Init(dsn string) error {
	d, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return err
	}
	// sqlite allows a single writer
	d.SetMaxOpenConns(1)
	if err = d.Ping(); err != nil {
		_ = d.Close()
		return err
	}
	if _, err = d.Exec(schema); err != nil {
		_ = d.Close()
		return err
	}
	mu.Lock()
	db = d
	mu.Unlock()
	return nil
}

func handle() (*sql.DB, error) {
	mu.RLock()
	defer mu.RUnlock()
	if db == nil {
		return nil, ErrNotOpen
	}
	return db, nil
}

func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return db != nil
}

// Close waits for running queries; later calls get ErrNotOpen.
func Close() {
	mu.Lock()
	d := db
	db = nil
	mu.Unlock()
	if d != nil {
		_ = d.Close()
	}
}

func checkResultLastInsertId(res sql.Result, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
