// Package replication tracks which attributes of scene objects have changed
// since they were last sent, and encodes the resulting deltas. It knows
// nothing about the scene graph itself; the scene drives it through
// attribute descriptor lists.
package replication

import (
	"github.com/scenesync/scenesync/internal/core/attribute"
	"github.com/scenesync/scenesync/internal/core/variant"
)

// State holds the last-sent values for one replicated object. The zero
// value is ready to use; the first diff pass reports every networked
// attribute as changed.
type State struct {
	lastAttrs map[int]variant.Variant
	lastVars  variant.Map
}

// DiffAttributes compares the object's current networked attribute values
// against the last-sent baseline, records the new values as sent, and
// returns the changes. Attribute indices refer to positions in infos.
func (s *State) DiffAttributes(obj attribute.Serializable, infos []attribute.Info) []AttrChange {
	var changes []AttrChange
	for i, info := range infos {
		if info.Mode&attribute.Net == 0 || info.Get == nil {
			continue
		}
		cur := info.Get(obj)
		if last, ok := s.lastAttrs[i]; ok && cur.Equals(last) {
			continue
		}
		if s.lastAttrs == nil {
			s.lastAttrs = make(map[int]variant.Variant)
		}
		s.lastAttrs[i] = cur
		changes = append(changes, AttrChange{Index: i, Value: cur})
	}
	return changes
}

// DiffVars compares a user-variable map against the last-sent baseline,
// records the current map as sent, and returns the changed entries and
// removed keys.
func (s *State) DiffVars(vars variant.Map) (changes []VarChange, removals []variant.StringHash) {
	changedKeys, removedKeys := vars.Diff(s.lastVars)
	for _, k := range changedKeys {
		changes = append(changes, VarChange{Key: k, Value: vars[k]})
	}
	removals = removedKeys
	s.lastVars = vars.Clone()
	return changes, removals
}

// Reset drops the baseline so the next diff resends everything. Used when
// a new client joins mid-session on a per-connection state.
func (s *State) Reset() {
	s.lastAttrs = nil
	s.lastVars = nil
}
