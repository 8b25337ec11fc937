package producer

import (
	"bytes"

	"github.com/outofforest/replica/store"
	"github.com/outofforest/replica/types"
)

type op struct {
	Schema string
	Key    []byte
	Type   types.ChangeType
	Value  []byte
}

func newWriter() *Writer {
	return &Writer{
		ops: map[string]*op{},
	}
}

// Writer collects changes staged in the producer cycle.
// The last change of the key wins.
type Writer struct {
	ops   map[string]*op
	order []string
}

// Put stores the value under the key of the schema.
func (w *Writer) Put(schema string, key, value []byte) {
	w.set(schema, key, types.ChangePut, bytes.Clone(value))
}

// Remove deletes the key of the schema.
func (w *Writer) Remove(schema string, key []byte) {
	w.set(schema, key, types.ChangeRemove, nil)
}

func (w *Writer) set(schema string, key []byte, changeType types.ChangeType, value []byte) {
	k := string(store.Key(schema, key))
	o, exists := w.ops[k]
	if !exists {
		o = &op{
			Schema: schema,
			Key:    bytes.Clone(key),
		}
		w.ops[k] = o
		w.order = append(w.order, k)
	}
	o.Type = changeType
	o.Value = value
}
