// Package typesystem implements the metaobject protocol of spec §4.5: the
// class shapes (Primitive<T>, String, Struct, Relation), their canonical
// textual serialization (spec §6.1), and the tagged-variant object values
// those classes describe. This corresponds to
// original_source/src/type_system/class.hpp and object.hpp, reworked from
// C++ template dispatch into the runtime tagged-variant design notes §9
// call for: a run-time branch on Kind rather than a template parameter.
package typesystem

// Kind is the shape of a class descriptor.
type Kind uint8

// Class kinds.
const (
	KindPrimitive Kind = iota
	KindString
	KindStruct
	KindRelation
)

func (k Kind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindString:
		return "string"
	case KindStruct:
		return "struct"
	case KindRelation:
		return "relation"
	default:
		return "unknown"
	}
}

// PrimitiveKind is a named arithmetic primitive from the closed set of
// spec §6.1's type-name grammar token.
type PrimitiveKind uint8

// Primitive kinds, one per grammar type-name token.
const (
	PInt PrimitiveKind = iota
	PUnsignedInt
	PLongLongInt
	PLongLongUnsignedInt
	PLongUnsignedInt
	PLongInt
	PShortInt
	PShortUnsignedInt
	PDouble
	PFloat
	PBool
	PChar
	PSignedChar
	PUnsignedChar
	PWCharT
)

// primitiveNames maps a PrimitiveKind to its grammar type-name token.
var primitiveNames = map[PrimitiveKind]string{
	PInt:                 "int",
	PUnsignedInt:         "unsignedint",
	PLongLongInt:         "longlongint",
	PLongLongUnsignedInt: "longlongunsignedint",
	PLongUnsignedInt:     "longunsignedint",
	PLongInt:             "longint",
	PShortInt:            "shortint",
	PShortUnsignedInt:    "shortunsignedint",
	PDouble:              "double",
	PFloat:               "float",
	PBool:                "bool",
	PChar:                "char",
	PSignedChar:          "signedchar",
	PUnsignedChar:        "unsignedchar",
	PWCharT:              "wchar_t",
}

// primitiveByName is the inverse of primitiveNames.
var primitiveByName = func() map[string]PrimitiveKind {
	m := make(map[string]PrimitiveKind, len(primitiveNames))
	for k, v := range primitiveNames {
		m[v] = k
	}
	return m
}()

// primitiveSizes is the fixed little-endian byte width of each primitive.
var primitiveSizes = map[PrimitiveKind]uint64{
	PInt:                4,
	PUnsignedInt:         4,
	PLongLongInt:         8,
	PLongLongUnsignedInt: 8,
	PLongUnsignedInt:     8,
	PLongInt:             8,
	PShortInt:            2,
	PShortUnsignedInt:    2,
	PDouble:              8,
	PFloat:               4,
	PBool:                1,
	PChar:                1,
	PSignedChar:          1,
	PUnsignedChar:        1,
	PWCharT:              4,
}

// PrimitiveName returns the grammar type-name token for kind.
func PrimitiveName(kind PrimitiveKind) string {
	return primitiveNames[kind]
}

// PrimitiveByName returns the PrimitiveKind for a grammar type-name token.
func PrimitiveByName(name string) (PrimitiveKind, bool) {
	k, ok := primitiveByName[name]
	return k, ok
}

// PrimitiveSize returns the fixed byte width of kind.
func PrimitiveSize(kind PrimitiveKind) uint64 {
	return primitiveSizes[kind]
}
