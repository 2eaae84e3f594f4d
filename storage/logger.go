package storage

import "fmt"

// Logger traces per-transaction query activity. Mirrors the teacher's
// database.Logger (`database/logger.go`) exactly -- same three-method
// shape -- generalized from "print a DDL statement before running it"
// to "print a script before running it".
type Logger interface {
	Print(v ...any)
	Printf(format string, v ...any)
	Println(v ...any)
}

// StdoutLogger writes every traced line to stdout.
type StdoutLogger struct{}

func (StdoutLogger) Print(v ...any)                 { fmt.Print(v...) }
func (StdoutLogger) Printf(format string, v ...any) { fmt.Printf(format, v...) }
func (StdoutLogger) Println(v ...any)               { fmt.Println(v...) }

// NullLogger discards everything; the default for SessionTx.
type NullLogger struct{}

func (NullLogger) Print(v ...any)                 {}
func (NullLogger) Printf(format string, v ...any) {}
func (NullLogger) Println(v ...any)               {}
