package blob

import (
	"encoding/binary"

	"github.com/cespare/xxhash"
	"github.com/golang/snappy"
	"github.com/pkg/errors"

	"github.com/outofforest/replica/types"
)

var (
	// ErrCorrupted is returned if blob cannot be decoded.
	ErrCorrupted = errors.New("blob corrupted")

	// ErrUnsupportedFormat is returned if header carries unknown format version.
	ErrUnsupportedFormat = errors.New("unsupported blob format")
)

// Kind defines the kind of the artifact.
type Kind uint8

// Artifact kinds.
const (
	KindHeader Kind = iota + 1
	KindDelta
	KindReverseDelta
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindHeader:
		return "header"
	case KindDelta:
		return "delta"
	case KindReverseDelta:
		return "reverseDelta"
	default:
		return "unknown"
	}
}

// Artifact is the published blob together with the versions it connects.
type Artifact struct {
	Kind        Kind
	FromVersion types.Version
	ToVersion   types.Version
	Data        []byte
}

// Compression is the compression codec.
type Compression byte

// Supported compression codecs.
const (
	SnappyCompression Compression = iota
	NoCompression
	unknownCompression
)

func (c Compression) isValid() bool {
	return c < unknownCompression
}

// Options defines encoding options.
type Options struct {
	// Compression used to store blob body.
	// Default: SnappyCompression.
	Compression Compression
}

func (o *Options) norm() *Options {
	var oo Options
	if o != nil {
		oo = *o
	}
	if !oo.Compression.isValid() {
		oo.Compression = SnappyCompression
	}
	return &oo
}

const (
	compressionOffset = 0
	checksumOffset    = compressionOffset + 1
	bodyOffset        = checksumOffset + types.UInt64Length
)

// seal wraps body with compression byte and checksum.
func seal(body []byte, o *Options) []byte {
	compression := NoCompression
	if o.Compression == SnappyCompression {
		// Compressed body is kept only if it saves at least a quarter of the space.
		if c := snappy.Encode(nil, body); len(c) < len(body)-len(body)/4 {
			compression = SnappyCompression
			body = c
		}
	}

	data := make([]byte, bodyOffset+len(body))
	data[compressionOffset] = byte(compression)
	binary.BigEndian.PutUint64(data[checksumOffset:], xxhash.Sum64(body))
	copy(data[bodyOffset:], body)
	return data
}

// open verifies the checksum and returns the decompressed body.
func open(data []byte) ([]byte, error) {
	if len(data) < bodyOffset {
		return nil, errors.Wrapf(ErrCorrupted, "blob too short: %d", len(data))
	}
	body := data[bodyOffset:]
	if checksum := binary.BigEndian.Uint64(data[checksumOffset:]); checksum != xxhash.Sum64(body) {
		return nil, errors.Wrap(ErrCorrupted, "checksum mismatch")
	}

	switch Compression(data[compressionOffset]) {
	case NoCompression:
		return body, nil
	case SnappyCompression:
		decoded, err := snappy.Decode(nil, body)
		if err != nil {
			return nil, errors.Wrapf(ErrCorrupted, "decompression failed: %s", err)
		}
		return decoded, nil
	default:
		return nil, errors.Wrapf(ErrCorrupted, "unknown compression %d", data[compressionOffset])
	}
}
