package scene

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"

	"github.com/scenesync/scenesync/internal/core/variant"
)

// JSON scene format. Attribute values reuse the variant JSON encoding, so
// the scene document stays a plain nested object tree that web tooling can
// consume without a custom parser.

type jsonAttribute struct {
	Name  string          `json:"name"`
	Value variant.Variant `json:"value"`
}

type jsonComponent struct {
	Type       string          `json:"type"`
	ID         uint32          `json:"id"`
	Attributes []jsonAttribute `json:"attributes,omitempty"`
}

type jsonNode struct {
	ID         uint32          `json:"id"`
	Attributes []jsonAttribute `json:"attributes,omitempty"`
	Components []jsonComponent `json:"components,omitempty"`
	Children   []jsonNode      `json:"children,omitempty"`
}

// SaveJSON writes the scene as an indented JSON document.
func (s *Scene) SaveJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "\t")
	if err := enc.Encode(recordToJSON(s.saveRecord(true))); err != nil {
		return errors.Wrap(err, "encode scene json")
	}
	return nil
}

// ToJSON serializes the scene into a byte slice.
func (s *Scene) ToJSON() ([]byte, error) {
	data, err := json.Marshal(recordToJSON(s.saveRecord(true)))
	if err != nil {
		return nil, errors.Wrap(err, "encode scene json")
	}
	return data, nil
}

// LoadJSON replaces the scene contents with a JSON scene document.
func (s *Scene) LoadJSON(r io.Reader) error {
	var doc jsonNode
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return errors.Wrap(err, "decode scene json")
	}
	return s.loadRecord(jsonToRecord(doc))
}

func recordToJSON(rec *nodeRecord) jsonNode {
	out := jsonNode{ID: rec.ID}
	for _, a := range rec.Attrs {
		out.Attributes = append(out.Attributes, jsonAttribute{Name: a.Name, Value: a.Value})
	}
	for _, c := range rec.Components {
		jc := jsonComponent{Type: c.TypeName, ID: c.ID}
		for _, a := range c.Attrs {
			jc.Attributes = append(jc.Attributes, jsonAttribute{Name: a.Name, Value: a.Value})
		}
		out.Components = append(out.Components, jc)
	}
	for _, child := range rec.Children {
		out.Children = append(out.Children, recordToJSON(child))
	}
	return out
}

func jsonToRecord(n jsonNode) *nodeRecord {
	rec := &nodeRecord{ID: n.ID}
	for _, a := range n.Attributes {
		rec.Attrs = append(rec.Attrs, attrRecord{Name: a.Name, Value: a.Value})
	}
	for _, c := range n.Components {
		crec := componentRecord{TypeName: c.Type, TypeHash: variant.Hash(c.Type), ID: c.ID}
		for _, a := range c.Attributes {
			crec.Attrs = append(crec.Attrs, attrRecord{Name: a.Name, Value: a.Value})
		}
		rec.Components = append(rec.Components, crec)
	}
	for _, child := range n.Children {
		rec.Children = append(rec.Children, jsonToRecord(child))
	}
	return rec
}
