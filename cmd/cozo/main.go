// Command cozo is a thin run_script front end over the embeddable query
// engine: read a CozoScript script and its parameters, pick a storage
// backend, run the script inside one transaction, and print the result
// envelope (spec.md §6). Grounded on `cmd/mysqldef/mysqldef.go` +
// `cmd/sqlite3def/sqlite3def.go`'s parse-options/open-backend/run/print
// shape.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/cozodb/cozo-go/eval"
	"github.com/cozodb/cozo-go/storage"
	"github.com/cozodb/cozo-go/storage/memkv"
	"github.com/cozodb/cozo-go/storage/sqlkv"
	"github.com/cozodb/cozo-go/util"
	"github.com/cozodb/cozo-go/value"
	"github.com/k0kubun/pp/v3"
)

func main() {
	util.InitSlog()
	opts := parseOptions(os.Args[1:])

	sink, closer, err := openBackend(opts.backend, opts.dsn)
	if err != nil {
		slog.Error("open backend", "error", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer()
	}

	catalog, err := storage.OpenCatalog(sink)
	if err != nil {
		slog.Error("open catalog", "error", err)
		os.Exit(1)
	}

	script, err := readScript(opts.scriptFile)
	if err != nil {
		slog.Error("read script", "error", err)
		os.Exit(1)
	}

	params, err := loadParams(opts.paramsFile)
	if err != nil {
		slog.Error("load params", "error", err)
		os.Exit(1)
	}

	tx := storage.NewSessionTx(sink, catalog)
	tx.Runner = func(tx *storage.SessionTx, triggerScript string, newRows, oldRows []storage.Tuple) error {
		_, err := eval.Run(triggerScript, triggerParams(newRows, oldRows), tx)
		return err
	}

	result, runErr := eval.Run(script, params, tx)
	if runErr != nil {
		tx.Rollback()
		printResult(nil, runErr, opts)
		os.Exit(1)
	}
	if err := tx.Commit(); err != nil {
		printResult(nil, err, opts)
		os.Exit(1)
	}
	printResult(result, nil, opts)
}

// openBackend resolves --backend/--dsn into a storage.TupleSink, mirroring
// the teacher's per-driver `NewDatabase` dispatch (`cmd/mysqldef`,
// `cmd/psqldef`, `cmd/mssqldef`, `cmd/sqlite3def` each wire exactly one
// backend; here one binary dispatches on a flag instead of one binary
// per engine).
func openBackend(backend, dsn string) (storage.TupleSink, func(), error) {
	switch strings.ToLower(backend) {
	case "", "mem", "memory":
		return memkv.New(), nil, nil
	case "sqlite", "sqlite3":
		store, err := sqlkv.NewSQLite(dsn)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	case "mysql":
		store, err := sqlkv.NewMySQL(dsn)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	case "postgres", "postgresql", "psql":
		store, err := sqlkv.NewPostgres(dsn)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	case "mssql", "sqlserver":
		store, err := sqlkv.NewMSSQL(dsn)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", backend)
	}
}

// readScript reads the CozoScript source from --file, or stdin when
// --file is "-" or unset, matching the teacher's `opts.File` "-" sentinel
// (`cmd/sqlite3def/sqlite3def.go`'s sqldef.ParseFiles).
func readScript(path string) (string, error) {
	if path == "" || path == "-" {
		raw, err := io.ReadAll(os.Stdin)
		return string(raw), err
	}
	raw, err := os.ReadFile(path)
	return string(raw), err
}

// triggerParams exposes a trigger's mutated rows under the implicit
// `_new`/`_old` relation names spec.md §4.9 names, each bound to a
// single-element list-of-rows parameter a trigger script's body can
// destructure via `*$_new[...]` style bindings.
func triggerParams(newRows, oldRows []storage.Tuple) map[string]value.Value {
	return map[string]value.Value{
		"_new": tuplesToListValue(newRows),
		"_old": tuplesToListValue(oldRows),
	}
}

func tuplesToListValue(rows []storage.Tuple) value.Value {
	out := make([]value.Value, len(rows))
	for i, r := range rows {
		row := make([]value.Value, 0, len(r.Key)+len(r.NonKey))
		row = append(row, r.Key...)
		row = append(row, r.NonKey...)
		out[i] = value.List(row)
	}
	return value.List(out)
}

// printResult renders the run_script result envelope (spec.md §6):
// either a plain table of headers/rows or a one-line acknowledgement.
// --debug switches to pp's struct dump, mirroring the teacher's own
// `pp.Println(root)` debug path (`database/mysql/parser.go`); --json
// prints one row object per line instead of a tab-separated table.
func printResult(res *eval.Result, err error, opts *Options) {
	if opts.debug {
		if err != nil {
			pp.Println(err)
			return
		}
		pp.Println(res)
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	if len(res.Headers) == 0 && len(res.Rows) == 0 {
		fmt.Println(res.Message)
		return
	}
	if opts.json {
		printJSON(res)
		return
	}
	fmt.Println(strings.Join(res.Headers, "\t"))
	for _, row := range res.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = v.String()
		}
		fmt.Println(strings.Join(cells, "\t"))
	}
}

// printJSON renders each row as an NDJSON object keyed by header name,
// so a consumer can stream-parse one row at a time without buffering
// the whole result set.
func printJSON(res *eval.Result) {
	enc := json.NewEncoder(os.Stdout)
	for _, row := range res.Rows {
		obj := make(map[string]string, len(row))
		for i, v := range row {
			name := fmt.Sprintf("col%d", i)
			if i < len(res.Headers) {
				name = res.Headers[i]
			}
			obj[name] = v.String()
		}
		if err := enc.Encode(obj); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return
		}
	}
}
