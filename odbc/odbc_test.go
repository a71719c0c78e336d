package odbc

import (
	"os"
	"path/filepath"
	"testing"

	sqlcli "github.com/semihalev/go-sqlcli"
)

func TestCString(t *testing.T) {
	b := cstr("abc")
	if len(b) != 4 || b[3] != 0 {
		t.Fatalf("Expected NUL terminated copy, got %v", b)
	}
	if got := cString(b); got != "abc" {
		t.Errorf("Expected abc, got %q", got)
	}
	if got := cString([]byte("no terminator")); got != "no terminator" {
		t.Errorf("Expected whole slice, got %q", got)
	}
	if got := cString([]byte{0, 'x'}); got != "" {
		t.Errorf("Expected empty string, got %q", got)
	}
}

func TestWordKeepsNegativeLengths(t *testing.T) {
	if int(word(nts)) != nts {
		t.Errorf("Expected SQL_NTS to survive the round trip, got %d", int(word(nts)))
	}
}

func TestLoadMissingLibrary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "libodbc-missing.so")
	if _, err := Load(path); err == nil {
		t.Fatal("Expected an error loading a missing library")
	}
}

func TestCandidates(t *testing.T) {
	if len(candidates()) == 0 {
		t.Fatal("Expected at least one driver manager candidate")
	}
}

// TestRoundTrip runs against a real data source when SQLCLI_ODBC_DSN is set.
func TestRoundTrip(t *testing.T) {
	dsn := os.Getenv("SQLCLI_ODBC_DSN")
	if dsn == "" {
		t.Skip("SQLCLI_ODBC_DSN not set")
	}
	lib, err := Default()
	if err != nil {
		t.Skipf("ODBC driver manager not available: %v", err)
	}

	conn, err := lib.Connect(dsn)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	stmt := sqlcli.NewStatement(conn)
	defer stmt.Close()

	if err := stmt.Execute("SELECT ?", sqlcli.Int32(42)); err != nil {
		t.Fatalf("Failed to execute: %v", err)
	}
	row, err := stmt.FetchOne()
	if err != nil {
		t.Fatalf("Failed to fetch: %v", err)
	}
	if len(row) != 1 {
		t.Fatalf("Expected 1 column, got %d", len(row))
	}
	t.Logf("SELECT ? returned %T %v", row[0], row[0])
}
