package replication

import (
	"bytes"

	"github.com/pkg/errors"

	"github.com/scenesync/scenesync/internal/core/binio"
	"github.com/scenesync/scenesync/internal/core/variant"
	"github.com/scenesync/scenesync/pkg/generic"
)

// Encode buffers are pooled; the tick loop frames messages every update.
var bufferPool = generic.NewHotPool(func() *bytes.Buffer { return new(bytes.Buffer) }, 4)

func encode(fill func(w *binio.Writer)) ([]byte, error) {
	buf := bufferPool.Get()
	defer func() {
		buf.Reset()
		bufferPool.Put(buf)
	}()
	w := binio.NewWriter(buf)
	fill(w)
	if err := w.Err(); err != nil {
		return nil, err
	}
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// ObjectKind distinguishes node and component deltas on the wire.
type ObjectKind uint8

const (
	KindNode ObjectKind = iota
	KindComponent
)

// AttrChange carries one changed attribute: its index in the type's
// attribute list and the new value.
type AttrChange struct {
	Index int
	Value variant.Variant
}

// VarChange carries one changed user variable.
type VarChange struct {
	Key   variant.StringHash
	Value variant.Variant
}

// Delta describes the incremental state of one object since the last
// update. Component deltas include the type hash so a mirror can create
// the component if it does not exist yet.
type Delta struct {
	Kind        ObjectKind
	ID          uint32
	TypeHash    variant.StringHash
	Changes     []AttrChange
	VarChanges  []VarChange
	VarRemovals []variant.StringHash
}

// Message kinds on the replication feed.
type MessageKind uint8

const (
	// MsgSnapshot carries a full binary scene for initial sync.
	MsgSnapshot MessageKind = iota + 1
	// MsgUpdate carries a batch of deltas for one frame.
	MsgUpdate
	// MsgRemove carries IDs of removed nodes and components.
	MsgRemove
)

// Removals lists objects deleted since the last update.
type Removals struct {
	Nodes      []uint32
	Components []uint32
}

func (d *Delta) write(w *binio.Writer) {
	_ = w.WriteByte(byte(d.Kind))
	w.WriteUint32(d.ID)
	if d.Kind == KindComponent {
		w.WriteUint32(uint32(d.TypeHash))
	}
	w.WriteVLE(uint32(len(d.Changes)))
	for _, ch := range d.Changes {
		w.WriteVLE(uint32(ch.Index))
		ch.Value.Write(w)
	}
	if d.Kind == KindNode {
		w.WriteVLE(uint32(len(d.VarChanges)))
		for _, vc := range d.VarChanges {
			w.WriteUint32(uint32(vc.Key))
			vc.Value.Write(w)
		}
		w.WriteVLE(uint32(len(d.VarRemovals)))
		for _, k := range d.VarRemovals {
			w.WriteUint32(uint32(k))
		}
	}
}

func readDelta(r *binio.Reader) (Delta, error) {
	kind, err := r.ReadByte()
	if err != nil {
		return Delta{}, err
	}
	d := Delta{Kind: ObjectKind(kind)}
	if d.Kind > KindComponent {
		return Delta{}, errors.Errorf("replication: unknown object kind %d", kind)
	}
	d.ID = r.ReadUint32()
	if d.Kind == KindComponent {
		d.TypeHash = variant.StringHash(r.ReadUint32())
	}
	n := r.ReadVLE()
	for i := uint32(0); i < n && r.Err() == nil; i++ {
		idx := r.ReadVLE()
		v, err := variant.Read(r)
		if err != nil {
			return Delta{}, err
		}
		d.Changes = append(d.Changes, AttrChange{Index: int(idx), Value: v})
	}
	if d.Kind == KindNode {
		n = r.ReadVLE()
		for i := uint32(0); i < n && r.Err() == nil; i++ {
			key := variant.StringHash(r.ReadUint32())
			v, err := variant.Read(r)
			if err != nil {
				return Delta{}, err
			}
			d.VarChanges = append(d.VarChanges, VarChange{Key: key, Value: v})
		}
		n = r.ReadVLE()
		for i := uint32(0); i < n && r.Err() == nil; i++ {
			d.VarRemovals = append(d.VarRemovals, variant.StringHash(r.ReadUint32()))
		}
	}
	return d, r.Err()
}

// EncodeUpdate frames a batch of deltas as a MsgUpdate message.
func EncodeUpdate(deltas []Delta) ([]byte, error) {
	return encode(func(w *binio.Writer) {
		_ = w.WriteByte(byte(MsgUpdate))
		w.WriteVLE(uint32(len(deltas)))
		for i := range deltas {
			deltas[i].write(w)
		}
	})
}

// EncodeSnapshot frames a serialized scene as a MsgSnapshot message.
func EncodeSnapshot(sceneData []byte) ([]byte, error) {
	return encode(func(w *binio.Writer) {
		_ = w.WriteByte(byte(MsgSnapshot))
		w.WriteBuffer(sceneData)
	})
}

// EncodeRemovals frames removed object IDs as a MsgRemove message.
func EncodeRemovals(rm Removals) ([]byte, error) {
	return encode(func(w *binio.Writer) {
		_ = w.WriteByte(byte(MsgRemove))
		w.WriteVLE(uint32(len(rm.Nodes)))
		for _, id := range rm.Nodes {
			w.WriteUint32(id)
		}
		w.WriteVLE(uint32(len(rm.Components)))
		for _, id := range rm.Components {
			w.WriteUint32(id)
		}
	})
}

// DecodedMessage is one parsed replication feed message.
type DecodedMessage struct {
	Kind     MessageKind
	Snapshot []byte
	Deltas   []Delta
	Removals Removals
}

// Decode parses a framed replication message.
func Decode(data []byte) (DecodedMessage, error) {
	r := binio.NewReader(bytes.NewReader(data))
	kind, err := r.ReadByte()
	if err != nil {
		return DecodedMessage{}, err
	}
	msg := DecodedMessage{Kind: MessageKind(kind)}
	switch msg.Kind {
	case MsgSnapshot:
		msg.Snapshot = r.ReadBuffer()
	case MsgUpdate:
		n := r.ReadVLE()
		for i := uint32(0); i < n && r.Err() == nil; i++ {
			d, err := readDelta(r)
			if err != nil {
				return DecodedMessage{}, err
			}
			msg.Deltas = append(msg.Deltas, d)
		}
	case MsgRemove:
		n := r.ReadVLE()
		for i := uint32(0); i < n && r.Err() == nil; i++ {
			msg.Removals.Nodes = append(msg.Removals.Nodes, r.ReadUint32())
		}
		n = r.ReadVLE()
		for i := uint32(0); i < n && r.Err() == nil; i++ {
			msg.Removals.Components = append(msg.Removals.Components, r.ReadUint32())
		}
	default:
		return DecodedMessage{}, errors.Errorf("replication: unknown message kind %d", kind)
	}
	return msg, r.Err()
}
