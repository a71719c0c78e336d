package main

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"

	sqlcli "github.com/semihalev/go-sqlcli"
	"github.com/semihalev/go-sqlcli/sqlitecli"
)

func TestSplitStatements(t *testing.T) {
	got := splitStatements("CREATE TABLE t (a VARCHAR(5));\nINSERT INTO t VALUES ('x;y');\n\n  ;SELECT * FROM t")
	want := []string{
		"CREATE TABLE t (a VARCHAR(5))",
		"INSERT INTO t VALUES ('x;y')",
		"SELECT * FROM t",
	}
	if len(got) != len(want) {
		t.Fatalf("Expected %d statements, got %d: %q", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Statement %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "NULL"},
		{"a\nb", `a\nb`},
		{[]byte{0xCA, 0xFE}, "0xcafe"},
		{int64(-3), "-3"},
		{2.5, "2.5"},
		{true, "true"},
		{decimal.RequireFromString("12.50"), "12.5"},
		{time.Date(2024, time.May, 6, 0, 0, 0, 0, time.UTC), "2024-05-06"},
		{time.Date(0, time.January, 1, 8, 30, 0, 0, time.UTC), "08:30:00"},
		{time.Date(2024, time.May, 6, 8, 30, 1, 0, time.UTC), "2024-05-06 08:30:01"},
	}
	for _, tt := range tests {
		if got := formatValue(tt.in); got != tt.want {
			t.Errorf("formatValue(%#v) = %q, want %q", tt.in, got, tt.want)
		}
	}

	long := formatValue(strings.Repeat("z", 200))
	if n := len([]rune(long)); n != maxCell {
		t.Errorf("Expected long values cut to %d runes, got %d", maxCell, n)
	}
}

func TestRun(t *testing.T) {
	conn, err := sqlitecli.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer conn.Close()

	stmt := sqlcli.NewStatement(conn)
	defer stmt.Close()

	if _, err := run(stmt, "CREATE TABLE fruit (name VARCHAR(10), qty INTEGER)", 0); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	out, err := run(stmt, "INSERT INTO fruit VALUES ('apple', 3), ('pear', NULL)", 0)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if !strings.Contains(out, "2 rows affected") {
		t.Errorf("Expected affected count, got %q", out)
	}

	out, err = run(stmt, "SELECT name, qty FROM fruit ORDER BY name", 0)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	for _, want := range []string{"name", "qty", "apple", "pear", "NULL", "2 rows"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output:\n%s", want, out)
		}
	}

	if _, err := run(stmt, "SELECT * FROM missing", 0); !sqlcli.IsError(err, sqlcli.ErrData) {
		t.Errorf("Expected data error, got %v", err)
	}
}

func TestOpenConnUnknownDriver(t *testing.T) {
	if _, err := openConn("postgres", "", ""); err == nil {
		t.Error("Expected an error for an unknown driver")
	}
}

func TestInteractiveModel(t *testing.T) {
	conn, err := sqlitecli.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer conn.Close()

	stmt := sqlcli.NewStatement(conn)
	defer stmt.Close()
	m := newInteractiveModel(stmt, "sqlite")

	m.input.SetValue("SELECT 1 AS one;")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil || !m.running {
		t.Fatal("Expected enter to start the statement")
	}
	if len(m.history) != 1 || m.history[0] != "SELECT 1 AS one" {
		t.Errorf("Unexpected history %q", m.history)
	}

	// A second enter while running is ignored.
	m.input.SetValue("SELECT 2")
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter}); cmd != nil {
		t.Error("Expected no command while a statement is running")
	}

	msg := cmd()
	m.Update(msg)
	if m.running || m.err != nil {
		t.Fatalf("Expected a finished statement, got running=%v err=%v", m.running, m.err)
	}
	view := m.View()
	if !strings.Contains(view, "one") || !strings.Contains(view, "1 row") {
		t.Errorf("Unexpected view:\n%s", view)
	}

	m.input.Reset()
	m.Update(tea.KeyMsg{Type: tea.KeyUp})
	if m.input.Value() != "SELECT 1 AS one" {
		t.Errorf("Expected history recall, got %q", m.input.Value())
	}

	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc}); cmd == nil {
		t.Error("Expected esc to quit")
	}
}
