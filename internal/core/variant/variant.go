// Package variant implements the tagged-union value type carried by every
// serializable attribute and user variable in the scene graph.
package variant

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
)

// Variant holds one value of any supported Type. The zero Variant has
// TypeNone and compares equal only to other TypeNone variants.
type Variant struct {
	typ  Type
	num  uint64 // bool, int, int64, float, double, node/component IDs
	hash StringHash
	vec  mgl32.Vec3
	quat mgl32.Quat
	str  string
	buf  []byte
	m    Map
	strs []string
	ids  []uint32
}

func Bool(v bool) Variant {
	var n uint64
	if v {
		n = 1
	}
	return Variant{typ: TypeBool, num: n}
}

func Int(v int) Variant { return Variant{typ: TypeInt, num: uint64(int64(v))} }

func Int64(v int64) Variant { return Variant{typ: TypeInt64, num: uint64(v)} }

func Float(v float32) Variant { return Variant{typ: TypeFloat, num: uint64(math.Float32bits(v))} }

func Double(v float64) Variant { return Variant{typ: TypeDouble, num: math.Float64bits(v)} }

func Vec3(v mgl32.Vec3) Variant { return Variant{typ: TypeVector3, vec: v} }

func Quat(q mgl32.Quat) Variant { return Variant{typ: TypeQuaternion, quat: q} }

func Str(s string) Variant { return Variant{typ: TypeString, str: s} }

func Buffer(b []byte) Variant { return Variant{typ: TypeBuffer, buf: b} }

func Strings(s []string) Variant { return Variant{typ: TypeStringVector, strs: s} }

func Resource(ref ResourceRef) Variant {
	return Variant{typ: TypeResourceRef, hash: ref.Type, str: ref.Name}
}

func MapValue(m Map) Variant { return Variant{typ: TypeVariantMap, m: m} }

// NodeID wraps a node identifier. The distinct type (rather than TypeInt)
// is what lets the scene resolver find and rewrite serialized references.
func NodeID(id uint32) Variant { return Variant{typ: TypeNodeID, num: uint64(id)} }

// ComponentID wraps a component identifier; see NodeID.
func ComponentID(id uint32) Variant { return Variant{typ: TypeComponentID, num: uint64(id)} }

// NodeIDs wraps a list of node identifiers, rewritten entry-wise on resolve.
func NodeIDs(ids []uint32) Variant { return Variant{typ: TypeNodeIDVector, ids: ids} }

func (v Variant) Type() Type { return v.typ }

func (v Variant) IsEmpty() bool { return v.typ == TypeNone }

func (v Variant) Bool() bool { return v.typ == TypeBool && v.num != 0 }

func (v Variant) Int() int {
	if v.typ != TypeInt {
		return 0
	}
	return int(int64(v.num))
}

func (v Variant) Int64() int64 {
	if v.typ != TypeInt64 {
		return 0
	}
	return int64(v.num)
}

func (v Variant) Float() float32 {
	if v.typ != TypeFloat {
		return 0
	}
	return math.Float32frombits(uint32(v.num))
}

func (v Variant) Double() float64 {
	if v.typ != TypeDouble {
		return 0
	}
	return math.Float64frombits(v.num)
}

func (v Variant) Vec3() mgl32.Vec3 {
	if v.typ != TypeVector3 {
		return mgl32.Vec3{}
	}
	return v.vec
}

func (v Variant) Quat() mgl32.Quat {
	if v.typ != TypeQuaternion {
		return mgl32.QuatIdent()
	}
	return v.quat
}

func (v Variant) Str() string {
	if v.typ != TypeString {
		return ""
	}
	return v.str
}

func (v Variant) Buffer() []byte {
	if v.typ != TypeBuffer {
		return nil
	}
	return v.buf
}

func (v Variant) StringVector() []string {
	if v.typ != TypeStringVector {
		return nil
	}
	return v.strs
}

func (v Variant) Resource() ResourceRef {
	if v.typ != TypeResourceRef {
		return ResourceRef{}
	}
	return ResourceRef{Type: v.hash, Name: v.str}
}

func (v Variant) Map() Map {
	if v.typ != TypeVariantMap {
		return nil
	}
	return v.m
}

func (v Variant) NodeID() uint32 {
	if v.typ != TypeNodeID {
		return 0
	}
	return uint32(v.num)
}

func (v Variant) ComponentID() uint32 {
	if v.typ != TypeComponentID {
		return 0
	}
	return uint32(v.num)
}

func (v Variant) NodeIDVector() []uint32 {
	if v.typ != TypeNodeIDVector {
		return nil
	}
	return v.ids
}

// ObjectID returns the wrapped identifier for either ID scalar type.
func (v Variant) ObjectID() uint32 {
	if v.typ == TypeNodeID || v.typ == TypeComponentID {
		return uint32(v.num)
	}
	return 0
}

// Equals reports deep equality. Variants of different types are never equal.
func (v Variant) Equals(o Variant) bool {
	if v.typ != o.typ {
		return false
	}
	switch v.typ {
	case TypeNone:
		return true
	case TypeVector3:
		return v.vec == o.vec
	case TypeQuaternion:
		return v.quat == o.quat
	case TypeString:
		return v.str == o.str
	case TypeResourceRef:
		return v.hash == o.hash && v.str == o.str
	case TypeBuffer:
		return bytesEqual(v.buf, o.buf)
	case TypeStringVector:
		if len(v.strs) != len(o.strs) {
			return false
		}
		for i := range v.strs {
			if v.strs[i] != o.strs[i] {
				return false
			}
		}
		return true
	case TypeNodeIDVector:
		if len(v.ids) != len(o.ids) {
			return false
		}
		for i := range v.ids {
			if v.ids[i] != o.ids[i] {
				return false
			}
		}
		return true
	case TypeVariantMap:
		return v.m.Equals(o.m)
	default:
		return v.num == o.num
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Map is the hashed-key variant map used for node user variables.
type Map map[StringHash]Variant

func (m Map) Equals(o Map) bool {
	if len(m) != len(o) {
		return false
	}
	for k, v := range m {
		ov, ok := o[k]
		if !ok || !v.Equals(ov) {
			return false
		}
	}
	return true
}

// Clone returns a shallow copy; variant payloads are treated as immutable.
func (m Map) Clone() Map {
	if m == nil {
		return nil
	}
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// SortedKeys returns the keys in ascending order. Serializers iterate in
// this order so that saving the same scene twice yields identical bytes.
func (m Map) SortedKeys() []StringHash {
	keys := make([]StringHash, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Diff returns the keys whose values differ from baseline plus the keys
// present in baseline but deleted from m. Replication uses this to ship
// only changed user variables.
func (m Map) Diff(baseline Map) (changed, removed []StringHash) {
	for k, v := range m {
		if bv, ok := baseline[k]; !ok || !v.Equals(bv) {
			changed = append(changed, k)
		}
	}
	for k := range baseline {
		if _, ok := m[k]; !ok {
			removed = append(removed, k)
		}
	}
	return changed, removed
}
