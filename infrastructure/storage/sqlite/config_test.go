package sqlite

import (
	"errors"
	"testing"
	"time"
)

func TestConnectionDSN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "plain path",
			cfg:  Config{DSN: "sim.db", JournalMode: "WAL", BusyTimeout: 5 * time.Second},
			want: "file:sim.db?_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL",
		},
		{
			name: "existing params win",
			cfg:  Config{DSN: "file:sim.db?mode=rwc&_journal_mode=DELETE", JournalMode: "WAL"},
			want: "file:sim.db?_foreign_keys=on&_journal_mode=DELETE&mode=rwc",
		},
		{
			name: "memory skips journal mode",
			cfg:  Config{DSN: ":memory:", JournalMode: "WAL"},
			want: ":memory:?_foreign_keys=on",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := connectionDSN(tt.cfg); got != tt.want {
				t.Errorf("connectionDSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOpenDB(t *testing.T) {
	t.Parallel()

	if _, err := openDB(Config{}); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("openDB(empty) error = %v, want ErrConnectionFailed", err)
	}

	db, err := openDB(Config{DSN: ":memory:", MaxOpenConns: 8})
	if err != nil {
		t.Fatalf("openDB(:memory:) error = %v", err)
	}
	defer db.Close()
	if n := db.Stats().MaxOpenConnections; n != 1 {
		t.Errorf("MaxOpenConnections = %d, want 1 for an in-memory database", n)
	}

	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("PRAGMA foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d, want 1", fk)
	}
}
