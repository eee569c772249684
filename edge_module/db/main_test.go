package db

import (
	"log"
	"os"
	"path/filepath"
	"testing"
)

func TestMain(m *testing.M) {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	dir, err := os.MkdirTemp("", "alert-journal")
	if err != nil {
		log.Fatal(err)
	}
	if err = Init(filepath.Join(dir, "alerts.db")); err != nil {
		log.Fatal(err)
	}

	exitCode := m.Run()
	Close()
	_ = os.RemoveAll(dir)
	os.Exit(exitCode)
}
