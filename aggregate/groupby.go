package aggregate

import (
	"encoding/binary"
	"math"

	"github.com/apache/arrow/go/v12/arrow"

	"github.com/aaronlmathis/goquery/core"
)

// groupEntry is the running aggregate state for one distinct group key: the
// key tuple itself plus one accumulator per aggregate expression, in
// declaration order. Entries are owned by value by the grouping map and
// live until the aggregation pass materializes its output.
type groupEntry struct {
	key          []core.ScalarValue
	accumulators []Accumulator
}

// accumulate feeds one value into the i-th accumulator.
func (e *groupEntry) accumulate(i int, v core.ScalarValue) error {
	return e.accumulators[i].Accumulate(v)
}

// newGroupEntry creates the initial entry for a key, with one freshly
// constructed accumulator per aggregate expression.
func newGroupEntry(key []core.ScalarValue, exprs []Expr) (*groupEntry, error) {
	accumulators := make([]Accumulator, len(exprs))
	for i, expr := range exprs {
		acc, err := NewAccumulator(expr.Kind, expr.Type)
		if err != nil {
			return nil, err
		}
		accumulators[i] = acc
	}
	return &groupEntry{key: key, accumulators: accumulators}, nil
}

// groupingMap maps encoded group keys to their entries. Iteration order for
// materialization is first-seen order, which keeps output deterministic for
// a given input stream (SQL mandates no particular order absent ORDER BY).
type groupingMap struct {
	entries map[string]*groupEntry
	order   []*groupEntry
}

func newGroupingMap() *groupingMap {
	return &groupingMap{entries: make(map[string]*groupEntry)}
}

// lookupOrCreate returns the entry for the key, creating and registering a
// fresh one on first sight.
func (m *groupingMap) lookupOrCreate(key []core.ScalarValue, exprs []Expr) (*groupEntry, error) {
	encoded := encodeGroupKey(key)
	if entry, ok := m.entries[encoded]; ok {
		return entry, nil
	}
	entry, err := newGroupEntry(key, exprs)
	if err != nil {
		return nil, err
	}
	m.entries[encoded] = entry
	m.order = append(m.order, entry)
	return entry, nil
}

func (m *groupingMap) len() int { return len(m.order) }

// buildGroupKey reads one row's value out of each group-by column,
// producing the ordered scalar tuple identifying the row's group. Column
// types outside the scalar union fail fast with an unsupported-type error.
func buildGroupKey(cols []arrow.Array, rowIdx int) ([]core.ScalarValue, error) {
	key := make([]core.ScalarValue, len(cols))
	for i, col := range cols {
		v, err := core.ScalarAt(col, rowIdx)
		if err != nil {
			return nil, err
		}
		key[i] = v
	}
	return key, nil
}

// encodeGroupKey produces an injective byte encoding of the key tuple so it
// can index the grouping map. Each component is a kind tag followed by a
// fixed-width payload; strings are length-prefixed. Two tuples encode
// equally iff they are structurally equal.
func encodeGroupKey(key []core.ScalarValue) string {
	var buf []byte
	var scratch [8]byte
	for _, v := range key {
		buf = append(buf, byte(v.Kind))
		switch v.Kind {
		case core.KindNull:
		case core.KindBool:
			if v.Bool {
				buf = append(buf, 1)
			} else {
				buf = append(buf, 0)
			}
		case core.KindInt8, core.KindInt16, core.KindInt32, core.KindInt64:
			binary.BigEndian.PutUint64(scratch[:], uint64(v.Int))
			buf = append(buf, scratch[:]...)
		case core.KindUint8, core.KindUint16, core.KindUint32, core.KindUint64:
			binary.BigEndian.PutUint64(scratch[:], v.Uint)
			buf = append(buf, scratch[:]...)
		case core.KindFloat32, core.KindFloat64:
			binary.BigEndian.PutUint64(scratch[:], math.Float64bits(v.Float))
			buf = append(buf, scratch[:]...)
		case core.KindString:
			binary.BigEndian.PutUint64(scratch[:], uint64(len(v.Str)))
			buf = append(buf, scratch[:]...)
			buf = append(buf, v.Str...)
		}
	}
	return string(buf)
}
