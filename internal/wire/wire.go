// Package wire implements the primitive binary encoding read by grammar
// terminals.
//
// Format (big-endian, fixed width):
//
//	boolean        1 byte (0 or 1)
//	int            4 bytes
//	long           8 bytes
//	float, double  IEEE-754, 4 and 8 bytes
//	string, bytes  int length, then the raw bytes
//	fixed          raw bytes, length from the schema
//	enum, union    int ordinal / branch tag
//	array, map     int item count, then the items (map: key string, value)
//	counter        int shard count, then one delta per shard
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrShortBuffer is returned when a read runs past the end of the input.
var ErrShortBuffer = errors.New("unexpected end of input")

// Writer appends encoded primitives to a buffer.
type Writer struct {
	buf []byte
}

// NewWriter creates an empty writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the encoded data.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the number of bytes written.
func (w *Writer) Len() int {
	return len(w.buf)
}

func (w *Writer) WriteBool(b bool) {
	if b {
		w.buf = append(w.buf, 1)
	} else {
		w.buf = append(w.buf, 0)
	}
}

func (w *Writer) WriteInt(n int32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(n))
}

func (w *Writer) WriteLong(n int64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, uint64(n))
}

func (w *Writer) WriteFloat(f float32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, math.Float32bits(f))
}

func (w *Writer) WriteDouble(f float64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, math.Float64bits(f))
}

// WriteCount writes an item count, ordinal or union tag.
func (w *Writer) WriteCount(n int) error {
	if n < 0 || n > math.MaxInt32 {
		return fmt.Errorf("count %d out of range", n)
	}
	w.WriteInt(int32(n))
	return nil
}

// WriteBytes writes length-prefixed bytes.
func (w *Writer) WriteBytes(b []byte) error {
	if err := w.WriteCount(len(b)); err != nil {
		return err
	}
	w.buf = append(w.buf, b...)
	return nil
}

// WriteString writes a length-prefixed UTF-8 string.
func (w *Writer) WriteString(s string) error {
	if err := w.WriteCount(len(s)); err != nil {
		return err
	}
	w.buf = append(w.buf, s...)
	return nil
}

// WriteFixed writes raw bytes without a length.
func (w *Writer) WriteFixed(b []byte) {
	w.buf = append(w.buf, b...)
}

// Reader consumes encoded primitives from a byte slice.
type Reader struct {
	data []byte
	off  int

	// OnRead, when set, is called after every successful read with the
	// primitive name, the offset it started at and its encoded length.
	OnRead func(kind string, offset, n int)
}

// NewReader creates a reader over data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Offset returns the number of bytes consumed.
func (r *Reader) Offset() int {
	return r.off
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

func (r *Reader) take(kind string, n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, fmt.Errorf("read %s at offset %d: %w", kind, r.off, ErrShortBuffer)
	}
	b := r.data[r.off : r.off+n]
	if r.OnRead != nil {
		r.OnRead(kind, r.off, n)
	}
	r.off += n
	return b, nil
}

func (r *Reader) ReadBool() (bool, error) {
	b, err := r.take("boolean", 1)
	if err != nil {
		return false, err
	}
	switch b[0] {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, fmt.Errorf("read boolean at offset %d: invalid byte 0x%02x", r.off-1, b[0])
}

func (r *Reader) ReadInt() (int32, error) {
	b, err := r.take("int", 4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

func (r *Reader) ReadLong() (int64, error) {
	b, err := r.take("long", 8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

func (r *Reader) ReadFloat() (float32, error) {
	b, err := r.take("float", 4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.BigEndian.Uint32(b)), nil
}

func (r *Reader) ReadDouble() (float64, error) {
	b, err := r.take("double", 8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
}

// ReadCount reads a non-negative item count, ordinal or union tag.
func (r *Reader) ReadCount() (int, error) {
	start := r.off
	n, err := r.ReadInt()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("read count at offset %d: negative value %d", start, n)
	}
	return int(n), nil
}

// ReadBytes reads length-prefixed bytes. The result aliases the input.
func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.ReadCount()
	if err != nil {
		return nil, err
	}
	return r.take("bytes", n)
}

// ReadString reads a length-prefixed string.
func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadCount()
	if err != nil {
		return "", err
	}
	b, err := r.take("string", n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadFixed reads n raw bytes. The result aliases the input.
func (r *Reader) ReadFixed(n int) ([]byte, error) {
	return r.take("fixed", n)
}
