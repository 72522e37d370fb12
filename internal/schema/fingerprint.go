package schema

import (
	"fmt"

	"github.com/roach88/evolve/internal/value"
)

// Canonical renders a schema graph as canonical JSON.
//
// Records are expanded on first visit and referenced afterwards as
// {"ref": k}, where k counts records in visit order, so recursive schemas
// render finitely and two graphs with the same shape render identically.
func Canonical(n *Node) ([]byte, error) {
	d := &describer{ids: make(map[*Node]int)}
	v, err := d.describe(n)
	if err != nil {
		return nil, err
	}
	return value.MarshalCanonical(v)
}

// Fingerprint returns the content hash of a schema graph.
func Fingerprint(n *Node) (string, error) {
	canonical, err := Canonical(n)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return value.HashWithDomain(value.DomainSchema, canonical), nil
}

type describer struct {
	ids map[*Node]int
}

func (d *describer) describe(n *Node) (value.Value, error) {
	if n == nil {
		return value.Null{}, nil
	}
	obj := value.Object{"kind": value.String(n.Kind.String())}
	if n.Name != "" {
		obj["name"] = value.String(n.Name)
	}

	switch n.Kind {
	case KindString:
		if n.UUID {
			obj["uuid"] = value.Bool(true)
		}
	case KindFixed:
		obj["size"] = value.Long(n.Size)
	case KindEnum:
		symbols := make(value.Array, len(n.Symbols))
		for i, s := range n.Symbols {
			symbols[i] = value.String(s)
		}
		obj["symbols"] = symbols
	case KindArray, KindMap, KindCounter:
		elem, err := d.describe(n.Elem)
		if err != nil {
			return nil, err
		}
		obj["elem"] = elem
	case KindRecord:
		if id, seen := d.ids[n]; seen {
			return value.Object{"ref": value.Long(id)}, nil
		}
		d.ids[n] = len(d.ids)

		fields := make(value.Array, len(n.Fields))
		for i, f := range n.Fields {
			t, err := d.describe(f.Type)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", f.Name, err)
			}
			fo := value.Object{"name": value.String(f.Name), "type": t}
			if f.Nullable {
				fo["nullable"] = value.Bool(true)
			}
			if f.HasDefault {
				fo["default"] = f.Default
			}
			fields[i] = fo
		}
		obj["fields"] = fields
	}
	return obj, nil
}
