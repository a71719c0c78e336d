// Command sqlcli runs SQL statements through a call-level interface driver.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"

	sqlcli "github.com/semihalev/go-sqlcli"
	"github.com/semihalev/go-sqlcli/odbc"
	"github.com/semihalev/go-sqlcli/sqlitecli"
)

func main() {
	var (
		driverName  = flag.String("driver", "sqlite", "Driver to use (sqlite or odbc)")
		dsn         = flag.String("dsn", ":memory:", "Data source: a SQLite path or an ODBC connection string")
		libPath     = flag.String("lib", "", "Path of the ODBC driver manager library (odbc only)")
		prepare     = flag.Bool("prepare", false, "Prepare statements and reuse the plan while the text is unchanged")
		segment     = flag.Int("segment", 0, "Segment size in bytes for long column values")
		verbose     = flag.Bool("v", false, "Log statement execution to stderr")
		interactive = flag.Bool("i", false, "Interactive prompt")
	)
	flag.Parse()

	logger := zap.NewNop()
	if *verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		logger = l
	}
	defer logger.Sync()

	conn, err := openConn(*driverName, *dsn, *libPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	opts := []sqlcli.Option{sqlcli.WithLogger(logger), sqlcli.WithPrepared(*prepare)}
	if *segment > 0 {
		opts = append(opts, sqlcli.WithOutputSegmentSize(*segment))
	}

	if *interactive {
		if err := runInteractive(conn, *driverName, opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	queries := flag.Args()
	if len(queries) == 0 {
		if term.IsTerminal(int(os.Stdin.Fd())) {
			fmt.Fprintln(os.Stderr, "Usage: sqlcli [-driver sqlite|odbc] [-dsn source] [-lib path] [-prepare] [-segment n] [-v] SQL...")
			fmt.Fprintln(os.Stderr, "       sqlcli ... < script.sql")
			fmt.Fprintln(os.Stderr, "       sqlcli ... -i  (interactive mode)")
			os.Exit(1)
		}
		script, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		queries = splitStatements(string(script))
	}

	stmt := sqlcli.NewStatement(conn, opts...)
	defer stmt.Close()

	width := 0
	if term.IsTerminal(int(os.Stdout.Fd())) {
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
			width = w
		}
	}

	for _, q := range queries {
		out, err := run(stmt, q, width)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(out)
	}
}

// openConn opens a CLI connection for the named driver.
func openConn(driverName, dsn, libPath string) (sqlcli.Conn, error) {
	switch driverName {
	case "sqlite":
		return sqlitecli.Open(dsn)
	case "odbc":
		var (
			lib *odbc.Library
			err error
		)
		if libPath != "" {
			lib, err = odbc.Load(libPath)
		} else {
			lib, err = odbc.Default()
		}
		if err != nil {
			return nil, err
		}
		return lib.Connect(dsn)
	}
	return nil, fmt.Errorf("unknown driver %q", driverName)
}

// run executes one statement and renders its outcome.
func run(stmt *sqlcli.Statement, query string, width int) (string, error) {
	if err := stmt.Execute(query); err != nil {
		return "", err
	}

	var b strings.Builder
	if stmt.HasResultSet() {
		rows, err := stmt.FetchAll()
		if err != nil {
			return "", err
		}
		b.WriteString(renderTable(stmt.Description(), rows, width))
		b.WriteString("\n")
		b.WriteString(countStyle.Render(rowsLabel(len(rows), "row")))
	} else if n := stmt.RowCount(); n >= 0 {
		b.WriteString(countStyle.Render(rowsLabel(int(n), "row") + " affected"))
	} else {
		b.WriteString(countStyle.Render("OK"))
	}
	for _, w := range stmt.Warnings() {
		b.WriteString("\n")
		b.WriteString(warningStyle.Render("warning: " + w.String()))
	}
	return b.String(), nil
}

// splitStatements splits a script on semicolons outside quoted text.
func splitStatements(script string) []string {
	var (
		out   []string
		cur   strings.Builder
		quote rune
	)
	flush := func() {
		if q := strings.TrimSpace(cur.String()); q != "" {
			out = append(out, q)
		}
		cur.Reset()
	}
	for _, r := range script {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == ';':
			flush()
			continue
		}
		cur.WriteRune(r)
	}
	flush()
	return out
}

func rowsLabel(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
