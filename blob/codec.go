package blob

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

type encoder struct {
	buf []byte
}

func (e *encoder) uint8(v uint8) {
	e.buf = append(e.buf, v)
}

func (e *encoder) int32(v int32) {
	e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(v))
}

func (e *encoder) int64(v int64) {
	e.buf = binary.BigEndian.AppendUint64(e.buf, uint64(v))
}

func (e *encoder) uvarint(v uint64) {
	e.buf = binary.AppendUvarint(e.buf, v)
}

func (e *encoder) utf(v string) {
	if len(v) > math.MaxUint16 {
		panic(errors.Errorf("string too long: %d", len(v)))
	}
	e.buf = binary.BigEndian.AppendUint16(e.buf, uint16(len(v)))
	e.buf = append(e.buf, v...)
}

func (e *encoder) bytes(v []byte) {
	e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(len(v)))
	e.buf = append(e.buf, v...)
}

// decoder reads values until first error, which is then reported by err.
type decoder struct {
	buf []byte
	err error
}

func (d *decoder) take(n uint64) []byte {
	if d.err != nil {
		return nil
	}
	if uint64(len(d.buf)) < n {
		d.err = errors.Wrapf(ErrCorrupted, "unexpected end of data, need %d bytes, have %d", n, len(d.buf))
		return nil
	}
	v := d.buf[:n:n]
	d.buf = d.buf[n:]
	return v
}

func (d *decoder) uint8() uint8 {
	if b := d.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (d *decoder) int32() int32 {
	if b := d.take(4); b != nil {
		return int32(binary.BigEndian.Uint32(b))
	}
	return 0
}

func (d *decoder) int64() int64 {
	if b := d.take(8); b != nil {
		return int64(binary.BigEndian.Uint64(b))
	}
	return 0
}

func (d *decoder) uvarint() uint64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Uvarint(d.buf)
	if n <= 0 {
		d.err = errors.Wrap(ErrCorrupted, "invalid varint")
		return 0
	}
	d.buf = d.buf[n:]
	return v
}

func (d *decoder) utf() string {
	if b := d.take(2); b != nil {
		return string(d.take(uint64(binary.BigEndian.Uint16(b))))
	}
	return ""
}

func (d *decoder) bytes() []byte {
	if b := d.take(4); b != nil {
		if v := d.take(uint64(binary.BigEndian.Uint32(b))); v != nil {
			return append([]byte{}, v...)
		}
	}
	return nil
}

// count reads the number of elements, each taking at least minSize bytes.
func (d *decoder) count(minSize uint64) int {
	n := d.int32()
	if d.err != nil {
		return 0
	}
	if n < 0 || uint64(n)*minSize > uint64(len(d.buf)) {
		d.err = errors.Wrapf(ErrCorrupted, "invalid number of elements: %d", n)
		return 0
	}
	return int(n)
}

func (d *decoder) finish() error {
	if d.err == nil && len(d.buf) > 0 {
		d.err = errors.Wrapf(ErrCorrupted, "%d trailing bytes", len(d.buf))
	}
	return d.err
}
