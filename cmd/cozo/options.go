package main

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
)

// Options holds the parsed CLI flags. Mirrors the teacher's per-def
// option struct (`cmd/sqlite3def/sqlite3def.go`'s anonymous opts struct),
// generalized from "DDL file + DB connection" to "CozoScript source +
// storage backend".
type Options struct {
	scriptFile string
	paramsFile string
	backend    string
	dsn        string
	json       bool
	debug      bool
}

var version = "dev"

// parseOptions mirrors `cmd/sqlite3def/sqlite3def.go`'s parseOptions:
// a go-flags struct, --help/--version handled inline, remaining
// positional args rejected rather than silently ignored.
func parseOptions(args []string) *Options {
	var opts struct {
		File    string `short:"f" long:"file" description:"Read a CozoScript script from this file, rather than stdin" value-name:"filename" default:"-"`
		Params  string `long:"params" description:"YAML file of query parameters" value-name:"filename"`
		Backend string `long:"backend" description:"Storage backend: mem, sqlite3, mysql, postgres, mssql" default:"mem"`
		DSN     string `long:"dsn" description:"Data source name for a SQL-backed backend"`
		JSON    bool   `long:"json" description:"Print result rows as NDJSON instead of a plain table"`
		Debug   bool   `long:"debug" description:"Pretty-print the result envelope with pp"`
		Help    bool   `long:"help" description:"Show this help"`
		Version bool   `long:"version" description:"Show this version"`
	}

	p := flags.NewParser(&opts, flags.None)
	p.Usage = "[options]"
	rest, err := p.ParseArgs(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if opts.Help {
		p.WriteHelp(os.Stdout)
		os.Exit(0)
	}
	if opts.Version {
		fmt.Println(version)
		os.Exit(0)
	}
	if len(rest) > 0 {
		fmt.Fprintf(os.Stderr, "unexpected arguments: %v\n\n", rest)
		p.WriteHelp(os.Stderr)
		os.Exit(1)
	}

	return &Options{
		scriptFile: opts.File,
		paramsFile: opts.Params,
		backend:    opts.Backend,
		dsn:        opts.DSN,
		json:       opts.JSON,
		debug:      opts.Debug,
	}
}
