package variant

import "github.com/cespare/xxhash/v2"

// StringHash is a 32-bit case-sensitive name hash. Component types, event
// types and user-variable keys are all addressed by StringHash so that the
// binary format never ships full strings per object.
type StringHash uint32

// Hash returns the StringHash of s (low 32 bits of the xxhash digest).
func Hash(s string) StringHash {
	return StringHash(xxhash.Sum64String(s))
}

// Type identifies which member of a Variant is populated.
type Type uint8

const (
	TypeNone Type = iota
	TypeBool
	TypeInt
	TypeInt64
	TypeFloat
	TypeDouble
	TypeVector3
	TypeQuaternion
	TypeString
	TypeBuffer
	TypeResourceRef
	TypeVariantMap
	TypeStringVector
	TypeNodeID
	TypeComponentID
	TypeNodeIDVector

	typeCount
)

var typeNames = [typeCount]string{
	"None",
	"Bool",
	"Int",
	"Int64",
	"Float",
	"Double",
	"Vector3",
	"Quaternion",
	"String",
	"Buffer",
	"ResourceRef",
	"VariantMap",
	"StringVector",
	"NodeID",
	"ComponentID",
	"NodeIDVector",
}

func (t Type) String() string {
	if t >= typeCount {
		return "Unknown"
	}
	return typeNames[t]
}

// TypeFromName maps a type name back to its Type. Unknown names map to
// TypeNone, mirroring how unparseable attribute values degrade on load.
func TypeFromName(name string) Type {
	for i, n := range typeNames {
		if n == name {
			return Type(i)
		}
	}
	return TypeNone
}

// ResourceRef names an external resource by type hash and name. The scene
// core never opens resources itself; refs are handed to the resource cache
// during async preloading.
type ResourceRef struct {
	Type StringHash
	Name string
}
