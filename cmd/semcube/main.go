// Command semcube is a small CLI host for the semantic query compiler:
// point it at a SQLite database and a cube registry (this binary ships
// the examples fixture registry) and it runs semantic queries,
// printing generated SQL or executed results.
//
// Grounded on cmd/datalog/main.go's flag layout and demo-on-empty-db
// behavior, adapted to this core's query shape (JSON semantic queries
// instead of Datalog find/where forms) and to SQLite instead of
// BadgerDB.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb"
	_ "github.com/mattn/go-sqlite3"

	"github.com/semcube/semcube/dialect"
	"github.com/semcube/semcube/examples"
	"github.com/semcube/semcube/executor"
	"github.com/semcube/semcube/query"
)

func main() {
	var dbPath string
	var queryJSON string
	var tenantID string
	var dialectName string
	var dryRun bool
	var devMode bool
	var help bool

	flag.StringVar(&dbPath, "db", "semcube.db", "database connection string (driver-specific DSN; ignored with -dry-run)")
	flag.StringVar(&queryJSON, "query", "", "semantic query, as JSON")
	flag.StringVar(&tenantID, "tenant", "demo", "tenantId carried in the security context")
	flag.StringVar(&dialectName, "dialect", "sqlite", "target dialect: postgres, mysql, sqlite, or duckdb")
	flag.BoolVar(&dryRun, "dry-run", false, "print the generated SQL instead of executing")
	flag.BoolVar(&devMode, "dev", false, "enable the dev-mode security-sanity pass")
	flag.BoolVar(&help, "h", false, "show help")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Runs a semantic query against the bundled examples cube registry.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -dry-run -query '{\"measures\":[\"Sales.revenue\"]}'\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -dialect postgres -db 'postgres://localhost/acme' -query '{\"measures\":[\"Sales.revenue\"],\"dimensions\":[\"Sales.status\"]}'\n", os.Args[0])
	}
	flag.Parse()

	if help || queryJSON == "" {
		flag.Usage()
		if help {
			os.Exit(0)
		}
		os.Exit(1)
	}

	d, driverName, err := resolveDialect(dialectName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	var q query.SemanticQuery
	if err := json.Unmarshal([]byte(queryJSON), &q); err != nil {
		fmt.Fprintf(os.Stderr, "invalid -query JSON: %v\n", err)
		os.Exit(1)
	}

	registry := examples.NewRegistry()
	secCtx := map[string]any{"tenantId": tenantID}

	if dryRun {
		exec := executor.New(registry, d, nil)
		plan, generated, err := exec.DryRun(q, secCtx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "dry run failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Primary cube: %s\n", plan.PrimaryCube)
		if len(plan.PreAggregationCTEs) > 0 {
			names := make([]string, len(plan.PreAggregationCTEs))
			for i, c := range plan.PreAggregationCTEs {
				names[i] = c.Cube
			}
			fmt.Printf("Pre-aggregation CTEs: %s\n", strings.Join(names, ", "))
		}
		fmt.Printf("\nSQL:\n%s\n\nArgs: %v\n", generated.SQL, generated.Args)
		return
	}

	db, err := sql.Open(driverName, dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open %s: %v\n", dbPath, err)
		os.Exit(1)
	}
	defer db.Close()

	exec := executor.New(registry, d, sqlDriver{db}, executor.WithDevMode(devMode))
	result, err := exec.Execute(context.Background(), q, secCtx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "query failed: %v\n", err)
		os.Exit(1)
	}

	var out strings.Builder
	renderResult(&out, result)
	fmt.Print(out.String())
}

// sqlDriver adapts *sql.DB to executor.Driver; *sql.Rows already
// satisfies executor.Rows's Next/Scan/Columns/Close shape directly.
type sqlDriver struct{ db *sql.DB }

func (d sqlDriver) Query(ctx context.Context, query string, args []any) (executor.Rows, error) {
	return d.db.QueryContext(ctx, query, args...)
}

// resolveDialect maps a -dialect flag value to its adapter and the
// database/sql driver name that opens a matching connection.
func resolveDialect(name string) (dialect.Adapter, string, error) {
	switch strings.ToLower(name) {
	case "postgres", "postgresql", "pgx":
		return dialect.NewPostgres(), "pgx", nil
	case "mysql":
		return dialect.NewMySQL(), "mysql", nil
	case "sqlite", "sqlite3":
		return dialect.NewSQLite(), "sqlite3", nil
	case "duckdb":
		return dialect.NewDuckDB(), "duckdb", nil
	default:
		return nil, "", fmt.Errorf("unknown -dialect %q (want postgres, mysql, sqlite, or duckdb)", name)
	}
}
