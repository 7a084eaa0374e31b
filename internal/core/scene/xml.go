package scene

import (
	"encoding/xml"
	"io"

	"github.com/pkg/errors"

	"github.com/scenesync/scenesync/internal/core/variant"
)

// XML scene format. Attributes are stored by name with a text value, so
// files survive attribute reordering and stay hand-editable. VariantMap
// values have no flat text form and nest as <variant> elements instead.

type xmlVariant struct {
	Hash    uint32       `xml:"hash,attr,omitempty"`
	Type    string       `xml:"type,attr"`
	Value   string       `xml:"value,attr,omitempty"`
	Entries []xmlVariant `xml:"variant,omitempty"`
}

type xmlAttribute struct {
	Name    string       `xml:"name,attr"`
	Type    string       `xml:"type,attr"`
	Value   string       `xml:"value,attr,omitempty"`
	Entries []xmlVariant `xml:"variant,omitempty"`
}

type xmlComponent struct {
	Type       string         `xml:"type,attr"`
	ID         uint32         `xml:"id,attr"`
	Attributes []xmlAttribute `xml:"attribute"`
}

type xmlNode struct {
	ID         uint32         `xml:"id,attr"`
	Attributes []xmlAttribute `xml:"attribute"`
	Components []xmlComponent `xml:"component"`
	Children   []xmlNode      `xml:"node"`
}

type xmlScene struct {
	XMLName xml.Name `xml:"scene"`
	xmlNode
}

// SaveXML writes the scene as an indented XML document.
func (s *Scene) SaveXML(w io.Writer) error {
	doc := xmlScene{xmlNode: recordToXML(s.saveRecord(true))}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "\t")
	if err := enc.Encode(doc); err != nil {
		return errors.Wrap(err, "encode scene xml")
	}
	return enc.Close()
}

// LoadXML replaces the scene contents with an XML scene document.
func (s *Scene) LoadXML(r io.Reader) error {
	rec, err := decodeXMLScene(r)
	if err != nil {
		return err
	}
	return s.loadRecord(rec)
}

func decodeXMLScene(r io.Reader) (*nodeRecord, error) {
	var doc xmlScene
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "decode scene xml")
	}
	return xmlToRecord(doc.xmlNode)
}

func recordToXML(rec *nodeRecord) xmlNode {
	out := xmlNode{ID: rec.ID}
	for _, a := range rec.Attrs {
		out.Attributes = append(out.Attributes, attrToXML(a))
	}
	for _, c := range rec.Components {
		xc := xmlComponent{Type: c.TypeName, ID: c.ID}
		for _, a := range c.Attrs {
			xc.Attributes = append(xc.Attributes, attrToXML(a))
		}
		out.Components = append(out.Components, xc)
	}
	for _, child := range rec.Children {
		out.Children = append(out.Children, recordToXML(child))
	}
	return out
}

func attrToXML(a attrRecord) xmlAttribute {
	out := xmlAttribute{Name: a.Name, Type: a.Value.Type().String()}
	if a.Value.Type() == variant.TypeVariantMap {
		out.Entries = mapToXML(a.Value.Map())
	} else {
		out.Value = a.Value.ToString()
	}
	return out
}

func mapToXML(m variant.Map) []xmlVariant {
	var out []xmlVariant
	for _, key := range m.SortedKeys() {
		v := m[key]
		entry := xmlVariant{Hash: uint32(key), Type: v.Type().String()}
		if v.Type() == variant.TypeVariantMap {
			entry.Entries = mapToXML(v.Map())
		} else {
			entry.Value = v.ToString()
		}
		out = append(out, entry)
	}
	return out
}

func xmlToRecord(n xmlNode) (*nodeRecord, error) {
	rec := &nodeRecord{ID: n.ID}
	for _, a := range n.Attributes {
		v, err := xmlAttrValue(a.Type, a.Value, a.Entries)
		if err != nil {
			return nil, errors.Wrapf(err, "attribute %q", a.Name)
		}
		rec.Attrs = append(rec.Attrs, attrRecord{Name: a.Name, Value: v})
	}
	for _, c := range n.Components {
		crec := componentRecord{TypeName: c.Type, TypeHash: variant.Hash(c.Type), ID: c.ID}
		for _, a := range c.Attributes {
			v, err := xmlAttrValue(a.Type, a.Value, a.Entries)
			if err != nil {
				return nil, errors.Wrapf(err, "component %q attribute %q", c.Type, a.Name)
			}
			crec.Attrs = append(crec.Attrs, attrRecord{Name: a.Name, Value: v})
		}
		rec.Components = append(rec.Components, crec)
	}
	for _, child := range n.Children {
		childRec, err := xmlToRecord(child)
		if err != nil {
			return nil, err
		}
		rec.Children = append(rec.Children, childRec)
	}
	return rec, nil
}

func xmlAttrValue(typeName, value string, entries []xmlVariant) (variant.Variant, error) {
	typ := variant.TypeFromName(typeName)
	if typ == variant.TypeVariantMap {
		m, err := xmlToMap(entries)
		if err != nil {
			return variant.Variant{}, err
		}
		return variant.MapValue(m), nil
	}
	return variant.FromString(typ, value)
}

func xmlToMap(entries []xmlVariant) (variant.Map, error) {
	m := make(variant.Map, len(entries))
	for _, e := range entries {
		v, err := xmlAttrValue(e.Type, e.Value, e.Entries)
		if err != nil {
			return nil, err
		}
		m[variant.StringHash(e.Hash)] = v
	}
	return m, nil
}
