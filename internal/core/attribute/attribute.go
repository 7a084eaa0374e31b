// Package attribute implements the per-type attribute descriptor lists that
// drive serialization, replication and the deferred ID fix-up pass. A type
// registers its attributes once at init time; serializers and the resolver
// then walk the same list instead of reflecting over structs.
package attribute

import (
	"sort"
	"sync"

	"github.com/scenesync/scenesync/internal/core/variant"
)

// Mode is a bit set describing where an attribute participates and, for ID
// attributes, which object space the stored value references.
type Mode uint8

const (
	// File marks attributes persisted in scene files.
	File Mode = 1 << iota
	// Net marks attributes shipped in network deltas.
	Net
	// Latest marks network attributes where only the newest value matters.
	Latest
	// NoEdit hides the attribute from editing front ends.
	NoEdit
	// NodeIDRef marks a value holding a node ID rewritten on resolve.
	NodeIDRef
	// ComponentIDRef marks a value holding a component ID rewritten on resolve.
	ComponentIDRef
	// NodeIDVectorRef marks a value holding a node ID list rewritten on resolve.
	NodeIDVectorRef
)

// Default is the mode for ordinary persisted and replicated attributes.
const Default = File | Net

// AnyIDRef selects the modes the scene resolver must inspect.
const AnyIDRef = NodeIDRef | ComponentIDRef | NodeIDVectorRef

// Serializable is implemented by every object carrying registered
// attributes (nodes and components).
type Serializable interface {
	TypeName() string
	TypeHash() variant.StringHash
}

// Info describes one attribute of a serializable type.
type Info struct {
	Name    string
	Type    variant.Type
	Mode    Mode
	Default variant.Variant
	Get     func(Serializable) variant.Variant
	Set     func(Serializable, variant.Variant)
}

type registry struct {
	mu    sync.RWMutex
	infos map[variant.StringHash][]Info
	names map[variant.StringHash]string
}

var global = &registry{
	infos: make(map[variant.StringHash][]Info),
	names: make(map[variant.StringHash]string),
}

// Register installs the attribute list for typeName, replacing any previous
// registration. Returns the type hash for convenience.
func Register(typeName string, infos []Info) variant.StringHash {
	h := variant.Hash(typeName)
	global.mu.Lock()
	defer global.mu.Unlock()
	global.infos[h] = infos
	global.names[h] = typeName
	return h
}

// Append extends an already registered type's attribute list. Derived
// component types use this to inherit their base attributes.
func Append(typeName string, infos []Info) variant.StringHash {
	h := variant.Hash(typeName)
	global.mu.Lock()
	defer global.mu.Unlock()
	global.infos[h] = append(global.infos[h], infos...)
	global.names[h] = typeName
	return h
}

// Infos returns the attribute list registered for the type hash, or nil.
// The returned slice must not be mutated.
func Infos(h variant.StringHash) []Info {
	global.mu.RLock()
	defer global.mu.RUnlock()
	return global.infos[h]
}

// TypeName returns the registered name for a type hash, or "" if unknown.
func TypeName(h variant.StringHash) string {
	global.mu.RLock()
	defer global.mu.RUnlock()
	return global.names[h]
}

// RegisteredTypes returns the registered type names, sorted.
func RegisteredTypes() []string {
	global.mu.RLock()
	defer global.mu.RUnlock()
	out := make([]string, 0, len(global.names))
	for _, n := range global.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// NetAttributes returns the indices of attributes with the Net mode bit,
// in declaration order. Replication state sizes its dirty bitmask from this.
func NetAttributes(infos []Info) []int {
	var out []int
	for i, info := range infos {
		if info.Mode&Net != 0 {
			out = append(out, i)
		}
	}
	return out
}

// HasIDRefs reports whether any attribute in the list carries ID-reference
// semantics. The resolver caches a false result per type and skips further
// instances of that type.
func HasIDRefs(infos []Info) bool {
	for _, info := range infos {
		if info.Mode&AnyIDRef != 0 {
			return true
		}
	}
	return false
}
