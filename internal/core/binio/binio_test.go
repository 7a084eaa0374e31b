package binio

import (
	"bytes"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	w.WriteBool(true)
	w.WriteUint16(0xbeef)
	w.WriteUint32(0xdeadbeef)
	w.WriteInt64(-42)
	w.WriteFloat32(1.5)
	w.WriteFloat64(-2.25)
	w.WriteString("hello scene")
	w.WriteBuffer([]byte{1, 2, 3})
	w.WriteVec3(mgl32.Vec3{1, 2, 3})
	w.WriteQuat(mgl32.QuatIdent())
	require.NoError(t, w.Err())

	r := NewReader(&buf)
	assert.True(t, r.ReadBool())
	assert.Equal(t, uint16(0xbeef), r.ReadUint16())
	assert.Equal(t, uint32(0xdeadbeef), r.ReadUint32())
	assert.Equal(t, int64(-42), r.ReadInt64())
	assert.Equal(t, float32(1.5), r.ReadFloat32())
	assert.Equal(t, -2.25, r.ReadFloat64())
	assert.Equal(t, "hello scene", r.ReadString())
	assert.Equal(t, []byte{1, 2, 3}, r.ReadBuffer())
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, r.ReadVec3())
	assert.Equal(t, mgl32.QuatIdent(), r.ReadQuat())
	require.NoError(t, r.Err())
}

func TestVLEEncoding(t *testing.T) {
	tests := []struct {
		value uint32
		bytes int
	}{
		{0, 1},
		{0x7f, 1},
		{0x80, 2},
		{0x3fff, 2},
		{0x4000, 3},
		{0xffffffff, 5},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		w := NewWriter(&buf)
		w.WriteVLE(tt.value)
		require.NoError(t, w.Err())
		assert.Equal(t, tt.bytes, buf.Len(), "value %#x", tt.value)

		r := NewReader(&buf)
		assert.Equal(t, tt.value, r.ReadVLE())
		require.NoError(t, r.Err())
	}
}

func TestReaderOffsetTracksConsumption(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.WriteUint32(7)
	w.WriteString("ab")
	require.NoError(t, w.Err())

	r := NewReader(&buf)
	assert.Equal(t, int64(0), r.Offset())
	r.ReadUint32()
	assert.Equal(t, int64(4), r.Offset())
	r.ReadString()
	assert.Equal(t, int64(7), r.Offset())
}

func TestReaderStickyErrorOnShortInput(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{1, 2}))
	r.ReadUint32()
	assert.Error(t, r.Err())
	// subsequent reads stay failed and return zero values
	assert.Equal(t, uint32(0), r.ReadUint32())
	assert.Equal(t, "", r.ReadString())
}

func TestReadStringLengthLimit(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.WriteVLE(maxStringLen + 1)
	r := NewReader(&buf)
	assert.Equal(t, "", r.ReadString())
	assert.Error(t, r.Err())
}

func TestReadBufferLengthLimit(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.WriteVLE(maxBufferLen + 1)
	r := NewReader(&buf)
	assert.Nil(t, r.ReadBuffer())
	assert.Error(t, r.Err())
}
