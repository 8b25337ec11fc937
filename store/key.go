package store

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

const schemaLengthSize = 2

// Key builds the key of the record belonging to the schema.
func Key(schema string, key []byte) []byte {
	if len(schema) > math.MaxUint16 {
		panic(errors.Errorf("schema name too long: %d", len(schema)))
	}

	k := make([]byte, schemaLengthSize+len(schema)+len(key))
	binary.BigEndian.PutUint16(k, uint16(len(schema)))
	copy(k[schemaLengthSize:], schema)
	copy(k[schemaLengthSize+len(schema):], key)
	return k
}

// SplitKey returns the schema and the key stored in the record key.
func SplitKey(k []byte) (string, []byte, error) {
	if len(k) < schemaLengthSize {
		return "", nil, errors.Errorf("record key too short: %d", len(k))
	}
	schemaLength := int(binary.BigEndian.Uint16(k))
	if len(k) < schemaLengthSize+schemaLength {
		return "", nil, errors.Errorf("record key too short for schema of length %d", schemaLength)
	}
	return string(k[schemaLengthSize : schemaLengthSize+schemaLength]), k[schemaLengthSize+schemaLength:], nil
}
