package scene

import (
	"github.com/scenesync/scenesync/internal/core/attribute"
	"github.com/scenesync/scenesync/internal/core/observability/log"
	"github.com/scenesync/scenesync/internal/core/variant"
)

// Resolver maps the object IDs recorded in a scene file or a clone source
// to the freshly created objects, then rewrites every ID-reference
// attribute in one pass once the whole subtree exists. Deferring the
// rewrite is what makes forward references inside a file work.
type Resolver struct {
	logger     logSink
	nodes      map[uint32]*Node
	components map[uint32]Component

	// types whose attribute list carries no ID refs, skipped on sight
	noIDRefs map[variant.StringHash]struct{}
}

// NewResolver creates an empty resolver. The logger may be nil.
func NewResolver(logger logSink) *Resolver {
	return &Resolver{
		logger:     logger,
		nodes:      make(map[uint32]*Node),
		components: make(map[uint32]Component),
		noIDRefs:   make(map[variant.StringHash]struct{}),
	}
}

// AddNode records the mapping from a source node ID to its new instance.
// ID zero carries no identity and is ignored.
func (r *Resolver) AddNode(oldID uint32, node *Node) {
	if oldID == 0 || node == nil {
		return
	}
	r.nodes[oldID] = node
}

// AddComponent records the mapping from a source component ID to its new
// instance.
func (r *Resolver) AddComponent(oldID uint32, c Component) {
	if oldID == 0 || c == nil {
		return
	}
	r.components[oldID] = c
}

// Resolve rewrites the ID-reference attributes of every registered
// component. A scalar reference with no mapping keeps its old value, which
// lets a prefab keep pointing at an object that lives outside the cloned
// subtree. Unmapped vector entries are zeroed instead, so consumers never
// chase a stale list.
func (r *Resolver) Resolve() {
	for _, c := range r.components {
		if expired(c) {
			continue
		}
		typeHash := c.TypeHash()
		if _, skip := r.noIDRefs[typeHash]; skip {
			continue
		}
		infos := attribute.Infos(typeHash)
		if !attribute.HasIDRefs(infos) {
			r.noIDRefs[typeHash] = struct{}{}
			continue
		}
		for _, info := range infos {
			if info.Mode&attribute.AnyIDRef == 0 || info.Get == nil || info.Set == nil {
				continue
			}
			r.resolveAttribute(c, info)
		}
	}
	r.nodes = make(map[uint32]*Node)
	r.components = make(map[uint32]Component)
}

func (r *Resolver) resolveAttribute(c Component, info attribute.Info) {
	value := info.Get(c)
	switch {
	case info.Mode&attribute.NodeIDRef != 0:
		oldID := value.NodeID()
		if oldID == 0 {
			return
		}
		if node, ok := r.nodes[oldID]; ok {
			info.Set(c, variant.NodeID(node.ID()))
		} else {
			r.warn("unresolved node reference", info.Name, oldID)
		}
	case info.Mode&attribute.ComponentIDRef != 0:
		oldID := value.ComponentID()
		if oldID == 0 {
			return
		}
		if target, ok := r.components[oldID]; ok {
			info.Set(c, variant.ComponentID(target.ID()))
		} else {
			r.warn("unresolved component reference", info.Name, oldID)
		}
	case info.Mode&attribute.NodeIDVectorRef != 0:
		oldIDs := value.NodeIDVector()
		if len(oldIDs) == 0 {
			return
		}
		newIDs := make([]uint32, len(oldIDs))
		for i, oldID := range oldIDs {
			if node, ok := r.nodes[oldID]; ok {
				newIDs[i] = node.ID()
			} else {
				r.warn("unresolved node list entry", info.Name, oldID)
			}
		}
		info.Set(c, variant.NodeIDs(newIDs))
	}
}

func (r *Resolver) warn(msg, attr string, id uint32) {
	if r.logger != nil {
		r.logger.Warn(msg, log.String("attribute", attr), log.Uint32("id", id))
	}
}
