package fixedrule

import (
	"encoding/csv"
	"strconv"
	"strings"

	"github.com/cozodb/cozo-go/util"
	"github.com/cozodb/cozo-go/value"
)

// csvReaderRule streams rows from a CSV source through Out the same way
// any other fixed rule's results reach storage (SPEC_FULL.md §4.10:
// "CSV ingest streams rows through the same TupleSink.put as any other
// rule result"). Option "data" carries the raw CSV text (a real
// deployment would instead take a path and open it; the core host
// stays storage/filesystem-agnostic, so the caller -- cmd/cozo or a
// trigger script -- is responsible for reading the file and handing
// the text across), "has_header" (default true) controls whether the
// first row is skipped, and "typing" (a list of type-tag strings, one
// per column: "int"/"float"/"string"/"bytes"/"bool"/"any") drives
// per-column coercion the way a target relation's Attribute.Typing
// would, per spec.md's "header-row type inference driven by the target
// relation's Attribute.Typing".
var csvReaderRule = Rule{
	Arity: func(opts Options, head int) (int, error) { return head, nil },
	Run: func(p *Payload, out Out, poison util.Poison) error {
		data, err := p.Options.String("data", "")
		if err != nil {
			return err
		}
		hasHeader, err := p.Options.Bool("has_header", true)
		if err != nil {
			return err
		}
		var typing []string
		if tv, err := p.Options.List("typing"); err == nil {
			for _, t := range tv {
				s, _ := t.AsString()
				typing = append(typing, s)
			}
		}

		r := csv.NewReader(strings.NewReader(data))
		r.FieldsPerRecord = -1
		first := true
		for {
			if err := poison.Check(); err != nil {
				return err
			}
			rec, err := r.Read()
			if err != nil {
				break
			}
			if first && hasHeader {
				first = false
				continue
			}
			first = false
			row := make(Row, len(rec))
			for i, field := range rec {
				row[i] = coerceCSVField(field, typing, i)
			}
			if err := out.Put(row); err != nil {
				return err
			}
		}
		return nil
	},
}

func coerceCSVField(field string, typing []string, col int) value.Value {
	tag := "string"
	if col < len(typing) && typing[col] != "" {
		tag = typing[col]
	}
	switch tag {
	case "int":
		if n, err := strconv.ParseInt(field, 10, 64); err == nil {
			return value.Int(n)
		}
	case "float":
		if f, err := strconv.ParseFloat(field, 64); err == nil {
			return value.Float(f)
		}
	case "bool":
		return value.Bool(field == "true" || field == "1")
	case "bytes":
		return value.Bytes([]byte(field))
	}
	return value.Str(field)
}
