package variant

import (
	"github.com/pkg/errors"

	"github.com/scenesync/scenesync/internal/core/binio"
)

// maxMapEntries bounds the entry count a decoded map may declare, so a
// corrupt count cannot demand an arbitrarily large allocation up front.
const maxMapEntries = 1 << 16

// Write encodes the variant as a one-byte type tag followed by the payload.
func (v Variant) Write(w *binio.Writer) {
	_ = w.WriteByte(byte(v.typ))
	switch v.typ {
	case TypeNone:
	case TypeBool:
		w.WriteBool(v.num != 0)
	case TypeInt:
		w.WriteInt32(int32(int64(v.num)))
	case TypeInt64:
		w.WriteInt64(int64(v.num))
	case TypeFloat:
		w.WriteUint32(uint32(v.num))
	case TypeDouble:
		w.WriteUint64(v.num)
	case TypeVector3:
		w.WriteVec3(v.vec)
	case TypeQuaternion:
		w.WriteQuat(v.quat)
	case TypeString:
		w.WriteString(v.str)
	case TypeBuffer:
		w.WriteBuffer(v.buf)
	case TypeResourceRef:
		w.WriteUint32(uint32(v.hash))
		w.WriteString(v.str)
	case TypeVariantMap:
		WriteMap(w, v.m)
	case TypeStringVector:
		w.WriteVLE(uint32(len(v.strs)))
		for _, s := range v.strs {
			w.WriteString(s)
		}
	case TypeNodeID, TypeComponentID:
		w.WriteUint32(uint32(v.num))
	case TypeNodeIDVector:
		w.WriteVLE(uint32(len(v.ids)))
		for _, id := range v.ids {
			w.WriteUint32(id)
		}
	}
}

// Read decodes a variant written by Write.
func Read(r *binio.Reader) (Variant, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return Variant{}, err
	}
	typ := Type(tag)
	if typ >= typeCount {
		return Variant{}, errors.Errorf("variant: unknown type tag %d", tag)
	}
	v := Variant{typ: typ}
	switch typ {
	case TypeNone:
	case TypeBool:
		if r.ReadBool() {
			v.num = 1
		}
	case TypeInt:
		v.num = uint64(int64(r.ReadInt32()))
	case TypeInt64:
		v.num = uint64(r.ReadInt64())
	case TypeFloat:
		v.num = uint64(r.ReadUint32())
	case TypeDouble:
		v.num = r.ReadUint64()
	case TypeVector3:
		v.vec = r.ReadVec3()
	case TypeQuaternion:
		v.quat = r.ReadQuat()
	case TypeString:
		v.str = r.ReadString()
	case TypeBuffer:
		v.buf = r.ReadBuffer()
	case TypeResourceRef:
		v.hash = StringHash(r.ReadUint32())
		v.str = r.ReadString()
	case TypeVariantMap:
		n := r.ReadVLE()
		if r.Err() != nil {
			return Variant{}, r.Err()
		}
		if n > maxMapEntries {
			return Variant{}, errors.Errorf("variant: map entry count %d exceeds limit", n)
		}
		m := make(Map, n)
		for i := uint32(0); i < n; i++ {
			k := StringHash(r.ReadUint32())
			mv, err := Read(r)
			if err != nil {
				return Variant{}, err
			}
			m[k] = mv
		}
		v.m = m
	case TypeStringVector:
		n := r.ReadVLE()
		for i := uint32(0); i < n && r.Err() == nil; i++ {
			v.strs = append(v.strs, r.ReadString())
		}
	case TypeNodeID, TypeComponentID:
		v.num = uint64(r.ReadUint32())
	case TypeNodeIDVector:
		n := r.ReadVLE()
		for i := uint32(0); i < n && r.Err() == nil; i++ {
			v.ids = append(v.ids, r.ReadUint32())
		}
	}
	if r.Err() != nil {
		return Variant{}, r.Err()
	}
	return v, nil
}

// WriteMap encodes m as a count followed by hash/variant pairs, in key
// order so that repeated saves produce identical bytes.
func WriteMap(w *binio.Writer, m Map) {
	w.WriteVLE(uint32(len(m)))
	for _, k := range m.SortedKeys() {
		w.WriteUint32(uint32(k))
		m[k].Write(w)
	}
}

// ReadMap decodes a map written by WriteMap.
func ReadMap(r *binio.Reader) (Map, error) {
	n := r.ReadVLE()
	if r.Err() != nil {
		return nil, r.Err()
	}
	if n > maxMapEntries {
		return nil, errors.Errorf("variant: map entry count %d exceeds limit", n)
	}
	m := make(Map, n)
	for i := uint32(0); i < n; i++ {
		k := StringHash(r.ReadUint32())
		v, err := Read(r)
		if err != nil {
			return nil, err
		}
		m[k] = v
	}
	return m, nil
}
