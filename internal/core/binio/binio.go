// Package binio implements the little-endian wire primitives shared by the
// binary scene format and the replication delta encoding. Both Writer and
// Reader carry a sticky error so serialization code can chain calls and
// check once at the end.
package binio

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

const (
	maxStringLen = 1 << 20
	maxBufferLen = 1 << 26
)

// Writer serializes primitives to an underlying io.Writer. The first write
// error is retained and all subsequent writes become no-ops.
type Writer struct {
	w   io.Writer
	n   int64
	err error
	buf [8]byte
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Err returns the first error encountered, if any.
func (w *Writer) Err() error { return w.err }

// Offset returns the number of bytes written so far.
func (w *Writer) Offset() int64 { return w.n }

func (w *Writer) write(b []byte) {
	if w.err != nil {
		return
	}
	n, err := w.w.Write(b)
	w.n += int64(n)
	if err != nil {
		w.err = errors.Wrap(err, "binio: write")
	}
}

func (w *Writer) WriteByte(v byte) error {
	w.buf[0] = v
	w.write(w.buf[:1])
	return w.err
}

func (w *Writer) WriteBool(v bool) {
	var b byte
	if v {
		b = 1
	}
	_ = w.WriteByte(b)
}

func (w *Writer) WriteUint16(v uint16) {
	binary.LittleEndian.PutUint16(w.buf[:2], v)
	w.write(w.buf[:2])
}

func (w *Writer) WriteUint32(v uint32) {
	binary.LittleEndian.PutUint32(w.buf[:4], v)
	w.write(w.buf[:4])
}

func (w *Writer) WriteInt32(v int32) { w.WriteUint32(uint32(v)) }

func (w *Writer) WriteUint64(v uint64) {
	binary.LittleEndian.PutUint64(w.buf[:8], v)
	w.write(w.buf[:8])
}

func (w *Writer) WriteInt64(v int64) { w.WriteUint64(uint64(v)) }

func (w *Writer) WriteFloat32(v float32) { w.WriteUint32(math.Float32bits(v)) }

func (w *Writer) WriteFloat64(v float64) { w.WriteUint64(math.Float64bits(v)) }

// WriteVLE writes v in 7-bit groups, least significant first, with the high
// bit of each byte marking continuation. Values below 0x80 take one byte.
func (w *Writer) WriteVLE(v uint32) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		_ = w.WriteByte(b)
		if v == 0 {
			return
		}
	}
}

// WriteString writes a VLE length prefix followed by the raw bytes.
func (w *Writer) WriteString(s string) {
	w.WriteVLE(uint32(len(s)))
	w.write([]byte(s))
}

// WriteBuffer writes a VLE length prefix followed by the raw bytes.
func (w *Writer) WriteBuffer(b []byte) {
	w.WriteVLE(uint32(len(b)))
	w.write(b)
}

func (w *Writer) WriteVec3(v mgl32.Vec3) {
	w.WriteFloat32(v.X())
	w.WriteFloat32(v.Y())
	w.WriteFloat32(v.Z())
}

func (w *Writer) WriteQuat(q mgl32.Quat) {
	w.WriteFloat32(q.W)
	w.WriteFloat32(q.V.X())
	w.WriteFloat32(q.V.Y())
	w.WriteFloat32(q.V.Z())
}

// Reader deserializes primitives written by Writer. Like Writer it keeps a
// sticky error; after a failure every read returns the zero value.
type Reader struct {
	r   io.Reader
	n   int64
	err error
	buf [8]byte
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Err returns the first error encountered, if any.
func (r *Reader) Err() error { return r.err }

// Offset returns the number of bytes consumed so far. The async scene
// loader uses this as its resume cursor.
func (r *Reader) Offset() int64 { return r.n }

func (r *Reader) read(b []byte) bool {
	if r.err != nil {
		return false
	}
	n, err := io.ReadFull(r.r, b)
	r.n += int64(n)
	if err != nil {
		r.err = errors.Wrap(err, "binio: read")
		return false
	}
	return true
}

func (r *Reader) ReadByte() (byte, error) {
	if !r.read(r.buf[:1]) {
		return 0, r.err
	}
	return r.buf[0], nil
}

func (r *Reader) ReadBool() bool {
	b, _ := r.ReadByte()
	return b != 0
}

func (r *Reader) ReadUint16() uint16 {
	if !r.read(r.buf[:2]) {
		return 0
	}
	return binary.LittleEndian.Uint16(r.buf[:2])
}

func (r *Reader) ReadUint32() uint32 {
	if !r.read(r.buf[:4]) {
		return 0
	}
	return binary.LittleEndian.Uint32(r.buf[:4])
}

func (r *Reader) ReadInt32() int32 { return int32(r.ReadUint32()) }

func (r *Reader) ReadUint64() uint64 {
	if !r.read(r.buf[:8]) {
		return 0
	}
	return binary.LittleEndian.Uint64(r.buf[:8])
}

func (r *Reader) ReadInt64() int64 { return int64(r.ReadUint64()) }

func (r *Reader) ReadFloat32() float32 { return math.Float32frombits(r.ReadUint32()) }

func (r *Reader) ReadFloat64() float64 { return math.Float64frombits(r.ReadUint64()) }

func (r *Reader) ReadVLE() uint32 {
	var v uint32
	for shift := uint(0); shift < 35; shift += 7 {
		b, err := r.ReadByte()
		if err != nil {
			return 0
		}
		v |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			return v
		}
	}
	r.err = errors.New("binio: VLE value overflows uint32")
	return 0
}

func (r *Reader) ReadString() string {
	n := r.ReadVLE()
	if r.err != nil {
		return ""
	}
	if n > maxStringLen {
		r.err = errors.Errorf("binio: string length %d exceeds limit", n)
		return ""
	}
	b := make([]byte, n)
	if !r.read(b) {
		return ""
	}
	return string(b)
}

func (r *Reader) ReadBuffer() []byte {
	n := r.ReadVLE()
	if r.err != nil || n == 0 {
		return nil
	}
	if n > maxBufferLen {
		r.err = errors.Errorf("binio: buffer length %d exceeds limit", n)
		return nil
	}
	b := make([]byte, n)
	if !r.read(b) {
		return nil
	}
	return b
}

func (r *Reader) ReadVec3() mgl32.Vec3 {
	return mgl32.Vec3{r.ReadFloat32(), r.ReadFloat32(), r.ReadFloat32()}
}

func (r *Reader) ReadQuat() mgl32.Quat {
	w := r.ReadFloat32()
	return mgl32.Quat{W: w, V: r.ReadVec3()}
}
