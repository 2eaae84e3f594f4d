package storage

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cozodb/cozo-go/util"
	"github.com/cozodb/cozo-go/value"
)

// metaRelationID is the reserved relation id stored-relation metadata
// itself lives under, keyed by relation name (spec.md §6, "relation
// metadata at relation_id = 0 under its name").
const metaRelationID uint64 = 0

// Column describes one stored-relation column (spec.md §3, "Attribute").
type Column struct {
	Name     string
	Typing   value.Typing
	Nullable bool
	Default  *value.Value
}

// Triggers names the CozoScript source attached to a relation, run
// inside the same transaction after a statement mutates it (spec.md
// §4.9).
type Triggers struct {
	OnPut     []string
	OnRetract []string
	OnReplace []string
}

// Relation is a stored relation's catalog entry.
type Relation struct {
	ID       uint64
	Name     string
	Keys     []Column
	NonKeys  []Column
	Triggers Triggers
}

func (r *Relation) keyTyping() []value.Typing    { return typings(r.Keys) }
func (r *Relation) nonKeyTyping() []value.Typing { return typings(r.NonKeys) }

func typings(cols []Column) []value.Typing {
	out := make([]value.Typing, len(cols))
	for i, c := range cols {
		out[i] = c.Typing
	}
	return out
}

// Catalog is the process-local relation directory, guarded by a single
// writer lock with reader snapshots (SPEC_FULL.md §9 design notes,
// "global catalog state"). It persists through the same TupleSink every
// other relation's rows live in, under metaRelationID.
type Catalog struct {
	mu     sync.RWMutex
	sink   TupleSink
	nextID uint64
	byName map[string]*Relation
}

// OpenCatalog loads an existing catalog from sink, or returns an empty
// one for a fresh database.
func OpenCatalog(sink TupleSink) (*Catalog, error) {
	c := &Catalog{sink: sink, byName: map[string]*Relation{}, nextID: 1}
	lo, hi := keyRangeForPrefix(metaRelationID, nil)
	it, err := sink.Scan(lo, hi)
	if err != nil {
		return nil, &StorageError{Err: err}
	}
	defer it.Close()
	for it.Next() {
		rel, err := decodeCatalogRow(it.Key(), it.Value())
		if err != nil {
			return nil, err
		}
		c.byName[rel.Name] = rel
		if rel.ID >= c.nextID {
			c.nextID = rel.ID + 1
		}
	}
	if err := it.Err(); err != nil {
		return nil, &StorageError{Err: err}
	}
	return c, nil
}

// Snapshot returns a point-in-time copy of the catalog's relation list,
// safe to read from a concurrent reader while a writer mutates the
// catalog (SPEC_FULL.md §5, "readers proceed against a snapshot").
func (c *Catalog) Snapshot() map[string]*Relation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]*Relation, len(c.byName))
	for k, v := range c.byName {
		cp := *v
		out[k] = &cp
	}
	return out
}

// Get looks up a relation by name.
func (c *Catalog) Get(name string) (*Relation, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rel, ok := c.byName[name]
	if !ok {
		return nil, &ResolveError{Msg: fmt.Sprintf("no stored relation named %q", name)}
	}
	return rel, nil
}

// CreateRelation allocates a fresh relation id and persists its
// metadata, forbidding a name collision (spec.md §4.9).
func (c *Catalog) CreateRelation(name string, keys, nonKeys []Column) (*Relation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.byName[name]; exists {
		return nil, &ResolveError{Msg: fmt.Sprintf("relation %q already exists", name)}
	}
	rel := &Relation{ID: c.nextID, Name: name, Keys: keys, NonKeys: nonKeys}
	c.nextID++
	if err := c.persist(rel); err != nil {
		return nil, err
	}
	c.byName[name] = rel
	return rel, nil
}

// ReplaceRelation redefines an existing relation's columns in place,
// keeping its id, data rows and triggers. No OnReplace trigger is run,
// here or by storage.SessionTx.ReplaceRelation.
func (c *Catalog) ReplaceRelation(name string, keys, nonKeys []Column) (*Relation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	existing, ok := c.byName[name]
	if !ok {
		return nil, &ResolveError{Msg: fmt.Sprintf("no stored relation named %q", name)}
	}
	rel := &Relation{ID: existing.ID, Name: name, Keys: keys, NonKeys: nonKeys, Triggers: existing.Triggers}
	if err := c.persist(rel); err != nil {
		return nil, err
	}
	c.byName[name] = rel
	return rel, nil
}

// RenameRelation moves a relation's catalog entry to a new name,
// leaving its id (and therefore its data rows) untouched.
func (c *Catalog) RenameRelation(oldName, newName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	rel, ok := c.byName[oldName]
	if !ok {
		return &ResolveError{Msg: fmt.Sprintf("no stored relation named %q", oldName)}
	}
	if _, exists := c.byName[newName]; exists {
		return &ResolveError{Msg: fmt.Sprintf("relation %q already exists", newName)}
	}
	renamed := *rel
	renamed.Name = newName
	if err := c.persist(&renamed); err != nil {
		return err
	}
	lo, _ := keyRangeForPrefix(metaRelationID, []value.Value{value.Str(oldName)})
	if err := c.sink.Delete(lo); err != nil {
		return &StorageError{Err: err}
	}
	delete(c.byName, oldName)
	c.byName[newName] = &renamed
	return nil
}

// DropRelation removes name from the catalog and returns the [lo, hi)
// byte range of its data rows, which the caller schedules for a
// background range-delete rather than deleting inline (spec.md §4.9).
func (c *Catalog) DropRelation(name string) (lo, hi []byte, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rel, ok := c.byName[name]
	if !ok {
		return nil, nil, &ResolveError{Msg: fmt.Sprintf("no stored relation named %q", name)}
	}
	metaKey, _ := keyRangeForPrefix(metaRelationID, []value.Value{value.Str(name)})
	if err := c.sink.Delete(metaKey); err != nil {
		return nil, nil, &StorageError{Err: err}
	}
	delete(c.byName, name)
	lo, hi = keyRangeForPrefix(rel.ID, nil)
	return lo, hi, nil
}

// SetTriggers attaches trigger scripts to an existing relation.
func (c *Catalog) SetTriggers(name string, t Triggers) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	rel, ok := c.byName[name]
	if !ok {
		return &ResolveError{Msg: fmt.Sprintf("no stored relation named %q", name)}
	}
	updated := *rel
	updated.Triggers = t
	if err := c.persist(&updated); err != nil {
		return err
	}
	c.byName[name] = &updated
	return nil
}

func (c *Catalog) persist(rel *Relation) error {
	key := value.EncodeRowKey(metaRelationID, []value.Value{value.Str(rel.Name)})
	val := value.EncodeTuple(nil, encodeRelation(rel))
	if err := c.sink.Put(key, val); err != nil {
		return &StorageError{Err: err}
	}
	return nil
}

func decodeCatalogRow(key, val []byte) (*Relation, error) {
	_, keyRest, err := value.DecodeValue(key) // the metaRelationID Int tag
	if err != nil {
		return nil, &StorageError{Err: err}
	}
	nameTuple, _, err := value.DecodeTuple(keyRest, 1)
	if err != nil {
		return nil, &StorageError{Err: err}
	}
	name, _ := nameTuple[0].AsString()
	fields, _, err := value.DecodeTuple(val, 6)
	if err != nil {
		return nil, &StorageError{Err: err}
	}
	return decodeRelation(name, fields)
}

func encodeRelation(r *Relation) []value.Value {
	return []value.Value{
		value.Int(int64(r.ID)),
		value.List(util.TransformSlice(r.Keys, encodeColumn)),
		value.List(util.TransformSlice(r.NonKeys, encodeColumn)),
		value.List(util.TransformSlice(r.Triggers.OnPut, value.Str)),
		value.List(util.TransformSlice(r.Triggers.OnRetract, value.Str)),
		value.List(util.TransformSlice(r.Triggers.OnReplace, value.Str)),
	}
}

func decodeRelation(name string, fields []value.Value) (*Relation, error) {
	if len(fields) != 6 {
		return nil, fmt.Errorf("storage: malformed relation metadata for %q", name)
	}
	id, _ := fields[0].AsInt()
	keyVals, _ := fields[1].AsList()
	nonKeyVals, _ := fields[2].AsList()
	keys, err := decodeColumns(keyVals)
	if err != nil {
		return nil, err
	}
	nonKeys, err := decodeColumns(nonKeyVals)
	if err != nil {
		return nil, err
	}
	return &Relation{
		ID:      uint64(id),
		Name:    name,
		Keys:    keys,
		NonKeys: nonKeys,
		Triggers: Triggers{
			OnPut:     decodeStrings(fields[3]),
			OnRetract: decodeStrings(fields[4]),
			OnReplace: decodeStrings(fields[5]),
		},
	}, nil
}

func decodeStrings(v value.Value) []string {
	lst, _ := v.AsList()
	out := make([]string, 0, len(lst))
	for _, e := range lst {
		s, _ := e.AsString()
		out = append(out, s)
	}
	return out
}

func decodeColumns(vs []value.Value) ([]Column, error) {
	out := make([]Column, 0, len(vs))
	for _, v := range vs {
		c, err := decodeColumn(v)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func encodeColumn(c Column) value.Value {
	var def value.Value
	if c.Default != nil {
		def = value.List([]value.Value{value.Bool(true), *c.Default})
	} else {
		def = value.List([]value.Value{value.Bool(false)})
	}
	return value.List([]value.Value{value.Str(c.Name), encodeTyping(c.Typing), value.Bool(c.Nullable), def})
}

func decodeColumn(v value.Value) (Column, error) {
	lst, ok := v.AsList()
	if !ok || len(lst) != 4 {
		return Column{}, fmt.Errorf("storage: malformed column metadata")
	}
	name, _ := lst[0].AsString()
	typ, err := decodeTyping(lst[1])
	if err != nil {
		return Column{}, err
	}
	nullable, _ := lst[2].AsBool()
	defList, _ := lst[3].AsList()
	var def *value.Value
	if len(defList) == 2 {
		if has, _ := defList[0].AsBool(); has {
			d := defList[1]
			def = &d
		}
	}
	return Column{Name: name, Typing: typ, Nullable: nullable, Default: def}, nil
}

func encodeTyping(t value.Typing) value.Value {
	switch t.Kind {
	case value.TypeAny:
		return value.Str("any")
	case value.TypeInt:
		return value.Str("int")
	case value.TypeFloat:
		return value.Str("float")
	case value.TypeString:
		return value.Str("string")
	case value.TypeBytes:
		return value.Str("bytes")
	case value.TypeUuid:
		return value.Str("uuid")
	case value.TypeList:
		return value.List([]value.Value{value.Str("list"), encodeTyping(*t.Elem), value.Int(int64(t.Len))})
	case value.TypeTuple:
		elems := make([]value.Value, 0, len(t.Elems)+1)
		elems = append(elems, value.Str("tuple"))
		for _, e := range t.Elems {
			elems = append(elems, encodeTyping(e))
		}
		return value.List(elems)
	default:
		return value.Str("any")
	}
}

func decodeTyping(v value.Value) (value.Typing, error) {
	if s, ok := v.AsString(); ok {
		switch s {
		case "any":
			return value.AnyTyping(), nil
		case "int":
			return value.IntTyping(), nil
		case "float":
			return value.FloatTyping(), nil
		case "string":
			return value.StringTyping(), nil
		case "bytes":
			return value.BytesTyping(), nil
		case "uuid":
			return value.UuidTyping(), nil
		}
		return value.Typing{}, fmt.Errorf("storage: unknown typing tag %q", s)
	}
	lst, ok := v.AsList()
	if !ok || len(lst) == 0 {
		return value.Typing{}, fmt.Errorf("storage: malformed typing metadata")
	}
	tag, _ := lst[0].AsString()
	switch tag {
	case "list":
		elem, err := decodeTyping(lst[1])
		if err != nil {
			return value.Typing{}, err
		}
		n, _ := lst[2].AsInt()
		return value.ListTyping(elem, int(n)), nil
	case "tuple":
		elems := make([]value.Typing, 0, len(lst)-1)
		for _, e := range lst[1:] {
			te, err := decodeTyping(e)
			if err != nil {
				return value.Typing{}, err
			}
			elems = append(elems, te)
		}
		return value.TupleTyping(elems...), nil
	default:
		return value.Typing{}, fmt.Errorf("storage: unknown typing tag %q", tag)
	}
}

// txCounter is the monotone counter spec.md §3 describes: "tx id is
// drawn from a monotone counter used only to tie-break triggers".
var txCounter uint64

func nextTxID() uint64 { return atomic.AddUint64(&txCounter, 1) }
