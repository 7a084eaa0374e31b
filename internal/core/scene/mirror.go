package scene

import (
	"github.com/scenesync/scenesync/internal/core/attribute"
	"github.com/scenesync/scenesync/internal/core/observability/log"
	"github.com/scenesync/scenesync/internal/core/replication"
)

// ApplyDelta applies one replication delta to a mirrored scene.
//
// Deltas for nodes the mirror has not seen yet create a placeholder under
// the root; the parent link and remaining state arrive through the node's
// own attributes on this or a later update. Deltas for unknown components
// are skipped, since a delta does not carry the owning node.
func (s *Scene) ApplyDelta(d replication.Delta) {
	switch d.Kind {
	case replication.KindNode:
		node := s.GetNode(d.ID)
		if node == nil {
			node = NewNode("")
			node.SetID(d.ID)
			s.AddChild(node)
		}
		applyChanges(node, nodeAttributes(), d.Changes)
		for _, vc := range d.VarChanges {
			node.SetVar(vc.Key, vc.Value)
		}
		for _, key := range d.VarRemovals {
			node.DeleteVar(key)
		}

	case replication.KindComponent:
		c := s.GetComponent(d.ID)
		if c == nil {
			s.logger.Debug("delta for unknown component skipped",
				log.Uint32("id", d.ID),
				log.Uint32("type", uint32(d.TypeHash)))
			return
		}
		applyChanges(c, attribute.Infos(c.TypeHash()), d.Changes)
	}
}

// ApplyRemovals removes the listed objects from a mirrored scene.
func (s *Scene) ApplyRemovals(rm replication.Removals) {
	for _, id := range rm.Components {
		if c := s.GetComponent(id); c != nil {
			c.Remove()
		}
	}
	for _, id := range rm.Nodes {
		if n := s.GetNode(id); n != nil {
			n.Remove()
		}
	}
}

func applyChanges(obj attribute.Serializable, infos []attribute.Info, changes []replication.AttrChange) {
	for _, ch := range changes {
		if ch.Index < 0 || ch.Index >= len(infos) {
			continue
		}
		if set := infos[ch.Index].Set; set != nil {
			set(obj, ch.Value)
		}
	}
}
