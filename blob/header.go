package blob

import (
	"github.com/pkg/errors"

	"github.com/outofforest/replica/types"
)

// Header describes schema changes accompanying version transition.
type Header struct {
	FormatVersion  int32
	OriginTag      types.Tag
	DestinationTag types.Tag
	Schemas        []string
	Registrations  []types.Registration
}

// EncodeHeader encodes the header.
func EncodeHeader(h Header, o *Options) []byte {
	e := &encoder{}
	e.int32(types.FormatVersion)
	e.int64(int64(h.OriginTag))
	e.int64(int64(h.DestinationTag))
	e.int32(int32(len(h.Schemas)))
	for _, s := range h.Schemas {
		e.utf(s)
	}
	e.int32(int32(len(h.Registrations)))
	for _, r := range h.Registrations {
		e.utf(r.Name)
		e.int32(r.ID)
	}

	// Placeholder for fields added by future formats.
	e.uvarint(0)

	return seal(e.buf, o.norm())
}

// DecodeHeader decodes the header.
func DecodeHeader(data []byte) (Header, error) {
	body, err := open(data)
	if err != nil {
		return Header{}, err
	}

	d := &decoder{buf: body}
	h := Header{
		FormatVersion: d.int32(),
	}
	if d.err == nil && h.FormatVersion != types.FormatVersion {
		return Header{}, errors.Wrapf(ErrUnsupportedFormat, "format version: %d", h.FormatVersion)
	}
	h.OriginTag = types.Tag(d.int64())
	h.DestinationTag = types.Tag(d.int64())

	if n := d.count(2); n > 0 {
		h.Schemas = make([]string, 0, n)
		for range n {
			h.Schemas = append(h.Schemas, d.utf())
		}
	}
	if n := d.count(6); n > 0 {
		h.Registrations = make([]types.Registration, 0, n)
		for range n {
			h.Registrations = append(h.Registrations, types.Registration{
				Name: d.utf(),
				ID:   d.int32(),
			})
		}
	}

	d.take(d.uvarint())

	if err := d.finish(); err != nil {
		return Header{}, err
	}
	return h, nil
}

// NewHeaderArtifact creates artifact carrying the header of the version transition.
func NewHeaderArtifact(from, to types.Version, h Header, o *Options) *Artifact {
	return &Artifact{
		Kind:        KindHeader,
		FromVersion: from,
		ToVersion:   to,
		Data:        EncodeHeader(h, o),
	}
}
