package scene

import (
	"bytes"
	"io"

	"github.com/pkg/errors"

	"github.com/scenesync/scenesync/internal/core/binio"
	"github.com/scenesync/scenesync/internal/core/variant"
)

// binaryMagic identifies a binary scene file.
const binaryMagic = "USCN"

// Binary scene layout, all little endian:
//
//	magic "USCN"
//	node:
//	  uint32  recorded ID
//	  VLE     attribute count, then typed variants in File-attribute order
//	  VLE     component count, then length-prefixed component buffers:
//	            uint32 type hash, uint32 recorded ID,
//	            VLE attribute count, typed variants
//	  VLE     child count, then child nodes recursively
//
// Component bodies are length prefixed so a reader can skip a component it
// cannot interpret without losing its place in the stream.

// SaveBinary writes the scene in the binary format.
func (s *Scene) SaveBinary(w io.Writer) error {
	bw := binio.NewWriter(w)
	bw.WriteString(binaryMagic)
	if err := writeNodeRecord(bw, s.saveRecord(false)); err != nil {
		return err
	}
	return bw.Err()
}

// ToBinary serializes the scene into a byte slice.
func (s *Scene) ToBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := s.SaveBinary(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// LoadBinary replaces the scene contents with a binary scene document.
func (s *Scene) LoadBinary(data []byte) error {
	rec, err := decodeBinaryScene(data)
	if err != nil {
		return err
	}
	return s.loadRecord(rec)
}

func decodeBinaryScene(data []byte) (*nodeRecord, error) {
	r := binio.NewReader(bytes.NewReader(data))
	if magic := r.ReadString(); magic != binaryMagic {
		return nil, errors.Errorf("not a binary scene file, magic %q", magic)
	}
	rec, err := readNodeRecord(r)
	if err != nil {
		return nil, err
	}
	if err := r.Err(); err != nil {
		return nil, errors.Wrap(err, "truncated scene file")
	}
	return rec, nil
}

func writeNodeRecord(w *binio.Writer, rec *nodeRecord) error {
	w.WriteUint32(rec.ID)

	w.WriteVLE(uint32(len(rec.Attrs)))
	for _, a := range rec.Attrs {
		a.Value.Write(w)
	}

	w.WriteVLE(uint32(len(rec.Components)))
	for _, c := range rec.Components {
		var body bytes.Buffer
		bw := binio.NewWriter(&body)
		bw.WriteUint32(uint32(c.TypeHash))
		bw.WriteUint32(c.ID)
		bw.WriteVLE(uint32(len(c.Attrs)))
		for _, a := range c.Attrs {
			a.Value.Write(bw)
		}
		if err := bw.Err(); err != nil {
			return err
		}
		w.WriteBuffer(body.Bytes())
	}

	w.WriteVLE(uint32(len(rec.Children)))
	for _, child := range rec.Children {
		if err := writeNodeRecord(w, child); err != nil {
			return err
		}
	}
	return w.Err()
}

func readNodeRecord(r *binio.Reader) (*nodeRecord, error) {
	rec := &nodeRecord{ID: r.ReadUint32()}

	attrCount := r.ReadVLE()
	for i := uint32(0); i < attrCount; i++ {
		v, err := variant.Read(r)
		if err != nil {
			return nil, err
		}
		rec.Attrs = append(rec.Attrs, attrRecord{Value: v})
	}

	compCount := r.ReadVLE()
	for i := uint32(0); i < compCount; i++ {
		body := r.ReadBuffer()
		if err := r.Err(); err != nil {
			return nil, err
		}
		crec, err := readComponentRecord(body)
		if err != nil {
			return nil, err
		}
		rec.Components = append(rec.Components, crec)
	}

	childCount := r.ReadVLE()
	if err := r.Err(); err != nil {
		return nil, err
	}
	for i := uint32(0); i < childCount; i++ {
		child, err := readNodeRecord(r)
		if err != nil {
			return nil, err
		}
		rec.Children = append(rec.Children, child)
	}
	return rec, r.Err()
}

func readComponentRecord(body []byte) (componentRecord, error) {
	br := binio.NewReader(bytes.NewReader(body))
	rec := componentRecord{
		TypeHash: variant.StringHash(br.ReadUint32()),
		ID:       br.ReadUint32(),
	}
	attrCount := br.ReadVLE()
	for i := uint32(0); i < attrCount; i++ {
		v, err := variant.Read(br)
		if err != nil {
			return rec, err
		}
		rec.Attrs = append(rec.Attrs, attrRecord{Value: v})
	}
	return rec, br.Err()
}
