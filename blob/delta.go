package blob

import (
	"github.com/pkg/errors"

	"github.com/outofforest/replica/types"
)

// Op is the single change of the record.
type Op struct {
	Type  types.ChangeType
	Key   []byte
	Value []byte
}

// SchemaChanges groups changes of records belonging to one schema.
type SchemaChanges struct {
	Schema string
	Ops    []Op
}

// Delta is the set of changes moving records between two versions.
type Delta struct {
	OriginTag      types.Tag
	DestinationTag types.Tag
	Schemas        []SchemaChanges
}

// Len returns the number of changes in the delta.
func (d Delta) Len() int {
	var n int
	for _, s := range d.Schemas {
		n += len(s.Ops)
	}
	return n
}

// EncodeDelta encodes the delta.
func EncodeDelta(d Delta, o *Options) []byte {
	e := &encoder{}
	e.int64(int64(d.OriginTag))
	e.int64(int64(d.DestinationTag))
	e.int32(int32(len(d.Schemas)))
	for _, s := range d.Schemas {
		e.utf(s.Schema)
		e.int32(int32(len(s.Ops)))
		for _, op := range s.Ops {
			e.uint8(uint8(op.Type))
			e.bytes(op.Key)
			if op.Type == types.ChangePut {
				e.bytes(op.Value)
			}
		}
	}

	return seal(e.buf, o.norm())
}

// DecodeDelta decodes the delta.
func DecodeDelta(data []byte) (Delta, error) {
	body, err := open(data)
	if err != nil {
		return Delta{}, err
	}

	d := &decoder{buf: body}
	delta := Delta{
		OriginTag:      types.Tag(d.int64()),
		DestinationTag: types.Tag(d.int64()),
	}

	if n := d.count(6); n > 0 {
		delta.Schemas = make([]SchemaChanges, 0, n)
		for range n {
			s := SchemaChanges{Schema: d.utf()}
			if m := d.count(5); m > 0 {
				s.Ops = make([]Op, 0, m)
				for range m {
					op := Op{Type: types.ChangeType(d.uint8())}
					op.Key = d.bytes()
					switch op.Type {
					case types.ChangePut:
						op.Value = d.bytes()
					case types.ChangeRemove:
					default:
						if d.err == nil {
							d.err = errors.Wrapf(ErrCorrupted, "unknown change type %d", op.Type)
						}
					}
					s.Ops = append(s.Ops, op)
				}
			}
			delta.Schemas = append(delta.Schemas, s)
		}
	}

	if err := d.finish(); err != nil {
		return Delta{}, err
	}
	return delta, nil
}

// NewDeltaArtifact creates artifact carrying forward or reverse delta.
func NewDeltaArtifact(kind Kind, from, to types.Version, d Delta, o *Options) *Artifact {
	return &Artifact{
		Kind:        kind,
		FromVersion: from,
		ToVersion:   to,
		Data:        EncodeDelta(d, o),
	}
}
