package typesystem

import (
	"fmt"
	"strings"

	"github.com/mpiechota/classgraph/errkind"
	"github.com/mpiechota/classgraph/mem"
)

// ObjectValue is a tagged-variant runtime value of some Class, per spec
// §4.5 / original_source/src/type_system/object.hpp. Which fields are
// meaningful is determined by Class.Kind, mirroring the branch-on-Kind
// design of the class descriptor itself rather than a Go type parameter
// per object, since objects of differing shapes must live in the same
// slice of struct fields and relation attributes.
type ObjectValue struct {
	Class *Class

	primitive interface{} // int64, uint64, float64 or bool, per Class.Primitive
	str       []byte
	fields    []*ObjectValue // KindStruct
	ingress   uint64         // KindRelation
	egress    uint64         // KindRelation
	attrs     []*ObjectValue // KindRelation
}

// New constructs an object of class with the given leaf arguments,
// consumed left to right in the flattened order Class.Count describes.
// It fails with BadArgument if len(args) != class.Count().
func New(class *Class, args ...interface{}) (*ObjectValue, error) {
	if want := class.Count(); len(args) != want {
		return nil, errkind.Errorf(errkind.BadArgument, "class %q needs %d leaf arguments, got %d", class.Name, want, len(args))
	}
	o, rest, err := build(class, args)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, errkind.Errorf(errkind.BadArgument, "class %q left %d unconsumed arguments", class.Name, len(rest))
	}
	return o, nil
}

func build(class *Class, args []interface{}) (*ObjectValue, []interface{}, error) {
	switch class.Kind {
	case KindPrimitive:
		v, err := coercePrimitive(class.Primitive, args[0])
		if err != nil {
			return nil, nil, err
		}
		return &ObjectValue{Class: class, primitive: v}, args[1:], nil

	case KindString:
		s, ok := args[0].(string)
		if !ok {
			b, ok := args[0].([]byte)
			if !ok {
				return nil, nil, errkind.Errorf(errkind.BadArgument, "string class %q needs a string argument", class.Name)
			}
			return &ObjectValue{Class: class, str: append([]byte(nil), b...)}, args[1:], nil
		}
		return &ObjectValue{Class: class, str: []byte(s)}, args[1:], nil

	case KindStruct:
		fields := make([]*ObjectValue, len(class.Fields))
		rest := args
		for i, f := range class.Fields {
			var child *ObjectValue
			var err error
			child, rest, err = build(f, rest)
			if err != nil {
				return nil, nil, err
			}
			fields[i] = child
		}
		return &ObjectValue{Class: class, fields: fields}, rest, nil

	case KindRelation:
		ingress, err := toObjectID(args[0])
		if err != nil {
			return nil, nil, err
		}
		egress, err := toObjectID(args[1])
		if err != nil {
			return nil, nil, err
		}
		rest := args[2:]
		attrs := make([]*ObjectValue, len(class.Attrs))
		for i, a := range class.Attrs {
			var child *ObjectValue
			child, rest, err = build(a, rest)
			if err != nil {
				return nil, nil, err
			}
			attrs[i] = child
		}
		return &ObjectValue{Class: class, ingress: ingress, egress: egress, attrs: attrs}, rest, nil

	default:
		return nil, nil, errkind.Errorf(errkind.TypeError, "class %q has unknown kind", class.Name)
	}
}

func toObjectID(v interface{}) (uint64, error) {
	switch n := v.(type) {
	case uint64:
		return n, nil
	case int:
		return uint64(n), nil
	case int64:
		return uint64(n), nil
	default:
		return 0, errkind.Errorf(errkind.BadArgument, "relation endpoint must be an object id, got %T", v)
	}
}

func coercePrimitive(kind PrimitiveKind, v interface{}) (interface{}, error) {
	switch kind {
	case PBool:
		b, ok := v.(bool)
		if !ok {
			return nil, errkind.Errorf(errkind.BadArgument, "expected bool, got %T", v)
		}
		return b, nil
	case PDouble, PFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		default:
			return nil, errkind.Errorf(errkind.BadArgument, "expected floating-point value, got %T", v)
		}
	case PUnsignedInt, PLongLongUnsignedInt, PLongUnsignedInt, PShortUnsignedInt, PUnsignedChar, PWCharT:
		switch n := v.(type) {
		case uint64:
			return n, nil
		case uint:
			return uint64(n), nil
		case int:
			return uint64(n), nil
		default:
			return nil, errkind.Errorf(errkind.BadArgument, "expected unsigned integer, got %T", v)
		}
	default:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		default:
			return nil, errkind.Errorf(errkind.BadArgument, "expected signed integer, got %T", v)
		}
	}
}

// DefaultNew constructs a zero-valued object of class: zero for every
// primitive, an empty string, a field-wise default struct, or a
// relation pointing at object id 0 with default attributes.
func DefaultNew(class *Class) *ObjectValue {
	switch class.Kind {
	case KindPrimitive:
		var v interface{}
		switch class.Primitive {
		case PBool:
			v = false
		case PDouble, PFloat:
			v = float64(0)
		case PUnsignedInt, PLongLongUnsignedInt, PLongUnsignedInt, PShortUnsignedInt, PUnsignedChar, PWCharT:
			v = uint64(0)
		default:
			v = int64(0)
		}
		return &ObjectValue{Class: class, primitive: v}
	case KindString:
		return &ObjectValue{Class: class, str: []byte{}}
	case KindStruct:
		fields := make([]*ObjectValue, len(class.Fields))
		for i, f := range class.Fields {
			fields[i] = DefaultNew(f)
		}
		return &ObjectValue{Class: class, fields: fields}
	case KindRelation:
		attrs := make([]*ObjectValue, len(class.Attrs))
		for i, a := range class.Attrs {
			attrs[i] = DefaultNew(a)
		}
		return &ObjectValue{Class: class, ingress: 0, egress: 0, attrs: attrs}
	default:
		return nil
	}
}

// ByteSize returns the actual encoded size of o, accounting for the
// concrete length of any String content it carries.
func (o *ObjectValue) ByteSize() uint64 {
	switch o.Class.Kind {
	case KindPrimitive:
		return PrimitiveSize(o.Class.Primitive)
	case KindString:
		return 4 + uint64(len(o.str))
	case KindStruct:
		var total uint64
		for _, f := range o.fields {
			total += f.ByteSize()
		}
		return total
	case KindRelation:
		total := uint64(16)
		for _, a := range o.attrs {
			total += a.ByteSize()
		}
		return total
	default:
		return 0
	}
}

// Write encodes o at offset in f and returns the offset following the
// encoding.
func (o *ObjectValue) Write(f *mem.File, offset uint64) (uint64, error) {
	switch o.Class.Kind {
	case KindPrimitive:
		return writePrimitive(f, offset, o.Class.Primitive, o.primitive)

	case KindString:
		off, err := mem.WriteScalar(f, offset, uint32(len(o.str)))
		if err != nil {
			return 0, err
		}
		return f.WriteString(off, o.str)

	case KindStruct:
		off := offset
		var err error
		for _, field := range o.fields {
			if off, err = field.Write(f, off); err != nil {
				return 0, err
			}
		}
		return off, nil

	case KindRelation:
		off, err := mem.WriteScalar(f, offset, o.ingress)
		if err != nil {
			return 0, err
		}
		if off, err = mem.WriteScalar(f, off, o.egress); err != nil {
			return 0, err
		}
		for _, attr := range o.attrs {
			if off, err = attr.Write(f, off); err != nil {
				return 0, err
			}
		}
		return off, nil

	default:
		return 0, errkind.Errorf(errkind.TypeError, "class %q has unknown kind", o.Class.Name)
	}
}

func writePrimitive(f *mem.File, offset uint64, kind PrimitiveKind, v interface{}) (uint64, error) {
	switch kind {
	case PBool:
		return mem.WriteScalar(f, offset, boolByte(v.(bool)))
	case PChar, PSignedChar:
		return mem.WriteScalar(f, offset, int8(v.(int64)))
	case PUnsignedChar:
		return mem.WriteScalar(f, offset, uint8(v.(uint64)))
	case PShortInt:
		return mem.WriteScalar(f, offset, int16(v.(int64)))
	case PShortUnsignedInt:
		return mem.WriteScalar(f, offset, uint16(v.(uint64)))
	case PInt:
		return mem.WriteScalar(f, offset, int32(v.(int64)))
	case PUnsignedInt:
		return mem.WriteScalar(f, offset, uint32(v.(uint64)))
	case PLongInt, PLongLongInt:
		return mem.WriteScalar(f, offset, v.(int64))
	case PLongUnsignedInt, PLongLongUnsignedInt:
		return mem.WriteScalar(f, offset, v.(uint64))
	case PFloat:
		return mem.WriteScalar(f, offset, float32(v.(float64)))
	case PDouble:
		return mem.WriteScalar(f, offset, v.(float64))
	case PWCharT:
		return mem.WriteScalar(f, offset, uint32(v.(uint64)))
	default:
		return 0, errkind.Errorf(errkind.TypeError, "unknown primitive kind %d", kind)
	}
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// Read decodes an object of class from offset in f.
func Read(f *mem.File, class *Class, offset uint64) (*ObjectValue, uint64, error) {
	switch class.Kind {
	case KindPrimitive:
		v, off, err := readPrimitive(f, offset, class.Primitive)
		if err != nil {
			return nil, 0, err
		}
		return &ObjectValue{Class: class, primitive: v}, off, nil

	case KindString:
		length, err := mem.ReadScalar[uint32](f, offset)
		if err != nil {
			return nil, 0, err
		}
		off := offset + mem.SizeOf[uint32]()
		s, err := f.ReadString(off, length)
		if err != nil {
			return nil, 0, err
		}
		return &ObjectValue{Class: class, str: s}, off + uint64(length), nil

	case KindStruct:
		fields := make([]*ObjectValue, len(class.Fields))
		off := offset
		for i, f2 := range class.Fields {
			child, next, err := Read(f, f2, off)
			if err != nil {
				return nil, 0, err
			}
			fields[i] = child
			off = next
		}
		return &ObjectValue{Class: class, fields: fields}, off, nil

	case KindRelation:
		ingress, err := mem.ReadScalar[uint64](f, offset)
		if err != nil {
			return nil, 0, err
		}
		off := offset + mem.SizeOf[uint64]()
		egress, err := mem.ReadScalar[uint64](f, off)
		if err != nil {
			return nil, 0, err
		}
		off += mem.SizeOf[uint64]()
		attrs := make([]*ObjectValue, len(class.Attrs))
		for i, a := range class.Attrs {
			child, next, err := Read(f, a, off)
			if err != nil {
				return nil, 0, err
			}
			attrs[i] = child
			off = next
		}
		return &ObjectValue{Class: class, ingress: ingress, egress: egress, attrs: attrs}, off, nil

	default:
		return nil, 0, errkind.Errorf(errkind.TypeError, "class %q has unknown kind", class.Name)
	}
}

func readPrimitive(f *mem.File, offset uint64, kind PrimitiveKind) (interface{}, uint64, error) {
	switch kind {
	case PBool:
		v, err := mem.ReadScalar[uint8](f, offset)
		return v != 0, offset + mem.SizeOf[uint8](), err
	case PChar, PSignedChar:
		v, err := mem.ReadScalar[int8](f, offset)
		return int64(v), offset + mem.SizeOf[int8](), err
	case PUnsignedChar:
		v, err := mem.ReadScalar[uint8](f, offset)
		return uint64(v), offset + mem.SizeOf[uint8](), err
	case PShortInt:
		v, err := mem.ReadScalar[int16](f, offset)
		return int64(v), offset + mem.SizeOf[int16](), err
	case PShortUnsignedInt:
		v, err := mem.ReadScalar[uint16](f, offset)
		return uint64(v), offset + mem.SizeOf[uint16](), err
	case PInt:
		v, err := mem.ReadScalar[int32](f, offset)
		return int64(v), offset + mem.SizeOf[int32](), err
	case PUnsignedInt:
		v, err := mem.ReadScalar[uint32](f, offset)
		return uint64(v), offset + mem.SizeOf[uint32](), err
	case PLongInt, PLongLongInt:
		v, err := mem.ReadScalar[int64](f, offset)
		return v, offset + mem.SizeOf[int64](), err
	case PLongUnsignedInt, PLongLongUnsignedInt:
		v, err := mem.ReadScalar[uint64](f, offset)
		return v, offset + mem.SizeOf[uint64](), err
	case PFloat:
		v, err := mem.ReadScalar[float32](f, offset)
		return float64(v), offset + mem.SizeOf[float32](), err
	case PDouble:
		v, err := mem.ReadScalar[float64](f, offset)
		return v, offset + mem.SizeOf[float64](), err
	case PWCharT:
		v, err := mem.ReadScalar[uint32](f, offset)
		return uint64(v), offset + mem.SizeOf[uint32](), err
	default:
		return nil, 0, errkind.Errorf(errkind.TypeError, "unknown primitive kind %d", kind)
	}
}

// Ingress returns the ingress endpoint id of a relation object.
func (o *ObjectValue) Ingress() uint64 { return o.ingress }

// Egress returns the egress endpoint id of a relation object.
func (o *ObjectValue) Egress() uint64 { return o.egress }

// Fields returns the field values of a struct object, in declaration order.
func (o *ObjectValue) Fields() []*ObjectValue { return o.fields }

// Attrs returns the attribute values of a relation object, in declaration order.
func (o *ObjectValue) Attrs() []*ObjectValue { return o.attrs }

// Raw returns the underlying Go value of a primitive object.
func (o *ObjectValue) Raw() interface{} { return o.primitive }

// Text returns the underlying bytes of a string object as a string.
func (o *ObjectValue) Text() string { return string(o.str) }

// ToString renders o in the human-readable form used by the database's
// Print* operations.
func (o *ObjectValue) ToString() string {
	switch o.Class.Kind {
	case KindPrimitive:
		return fmt.Sprintf("%v", o.primitive)
	case KindString:
		return fmt.Sprintf("%q", string(o.str))
	case KindStruct:
		parts := make([]string, len(o.fields))
		for i, f := range o.fields {
			parts[i] = f.ToString()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KindRelation:
		parts := make([]string, len(o.attrs))
		for i, a := range o.attrs {
			parts[i] = a.ToString()
		}
		attrStr := ""
		if len(parts) > 0 {
			attrStr = "{" + strings.Join(parts, ", ") + "}"
		}
		return fmt.Sprintf("(%d -> %d)%s", o.ingress, o.egress, attrStr)
	default:
		return "<invalid>"
	}
}
