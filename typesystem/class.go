package typesystem

import (
	"strings"

	"github.com/mpiechota/classgraph/errkind"
)

// Class is a class descriptor: a name plus a shape, per spec §4.5. Two
// classes are equal iff their canonical serializations are byte-equal —
// there is no separate structural-equality notion.
type Class struct {
	Name      string
	Kind      Kind
	Primitive PrimitiveKind // valid iff Kind == KindPrimitive
	Fields    []*Class      // valid iff Kind == KindStruct
	Ingress   *Class        // valid iff Kind == KindRelation
	Egress    *Class        // valid iff Kind == KindRelation
	Attrs     []*Class      // valid iff Kind == KindRelation
}

// reservedChars are the characters the grammar of spec §6.1 uses as
// delimiters; an identifier may not contain any of them.
const reservedChars = "@_<>"

func validateName(name string) error {
	if name == "" {
		return errkind.Errorf(errkind.BadArgument, "class name must not be empty")
	}
	if strings.ContainsAny(name, reservedChars) {
		return errkind.Errorf(errkind.BadArgument, "class name %q contains a reserved character (one of %q)", name, reservedChars)
	}
	return nil
}

// NewPrimitive returns a Primitive<kind> class named name.
func NewPrimitive(name string, kind PrimitiveKind) (*Class, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if _, ok := primitiveNames[kind]; !ok {
		return nil, errkind.Errorf(errkind.TypeError, "unknown primitive kind %d", kind)
	}
	return &Class{Name: name, Kind: KindPrimitive, Primitive: kind}, nil
}

// NewString returns a String class named name.
func NewString(name string) (*Class, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	return &Class{Name: name, Kind: KindString}, nil
}

// NewStruct returns a Struct class named name with the given fields, in
// order.
func NewStruct(name string, fields ...*Class) (*Class, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	return &Class{Name: name, Kind: KindStruct, Fields: fields}, nil
}

// NewRelation returns a Relation class named name with the given ingress
// and egress endpoint classes and attribute classes, per spec §4.5's
// design note: a relation always carries exactly two endpoints plus zero
// or more attributes.
func NewRelation(name string, ingress, egress *Class, attrs ...*Class) (*Class, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if ingress == nil || egress == nil {
		return nil, errkind.Errorf(errkind.BadArgument, "relation class %q needs both an ingress and an egress class", name)
	}
	return &Class{Name: name, Kind: KindRelation, Ingress: ingress, Egress: egress, Attrs: attrs}, nil
}

// Size reports the fixed encoded byte size of c and whether that size is
// statically known. It is indeterminate iff c contains a String class
// anywhere in its shape, since String objects are variable-length.
func (c *Class) Size() (uint64, bool) {
	switch c.Kind {
	case KindPrimitive:
		return PrimitiveSize(c.Primitive), true
	case KindString:
		return 0, false
	case KindStruct:
		var total uint64
		for _, f := range c.Fields {
			sz, ok := f.Size()
			if !ok {
				return 0, false
			}
			total += sz
		}
		return total, true
	case KindRelation:
		total := uint64(16) // ingress ObjectId + egress ObjectId
		for _, a := range c.Attrs {
			sz, ok := a.Size()
			if !ok {
				return 0, false
			}
			total += sz
		}
		return total, true
	default:
		return 0, false
	}
}

// Count returns the number of positional leaf arguments New expects to
// construct an object of class c: one per Primitive or String leaf, two
// plus one per attribute for a Relation, and the flattened sum of field
// counts for a Struct.
func (c *Class) Count() int {
	switch c.Kind {
	case KindPrimitive, KindString:
		return 1
	case KindStruct:
		n := 0
		for _, f := range c.Fields {
			n += f.Count()
		}
		return n
	case KindRelation:
		n := 2
		for _, a := range c.Attrs {
			n += a.Count()
		}
		return n
	default:
		return 0
	}
}

// Equal reports whether c and other serialize to the same canonical text.
func (c *Class) Equal(other *Class) bool {
	if c == nil || other == nil {
		return c == other
	}
	return Serialize(c) == Serialize(other)
}
