package typesystem

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/mpiechota/classgraph/errkind"
)

// classLexer tokenizes the grammar of spec §6.1. The "wchar_t" type-name,
// the only token that contains a reserved character, is lexed as WCharT;
// everything else that is not one of the four reserved characters falls
// into Ident, and the parser decides from context whether a given Ident is
// a type-name/"string"/"struct"/"relation" keyword or a plain class
// identifier — mirroring the reserved-character scheme of an OSIS
// reference in FocuswithJustin-JuniperBible/core/ir/ref.go.
var classLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "At", Pattern: `@`},
	{Name: "Underscore", Pattern: `_`},
	{Name: "Lt", Pattern: `<`},
	{Name: "Gt", Pattern: `>`},
	{Name: "WCharT", Pattern: `wchar_t`},
	{Name: "Ident", Pattern: `[^@_<>]+`},
})

// classNode is the raw parse tree: "_" head "@" name "_" ("<" items* ">")?.
type classNode struct {
	Head  string       `"_" @(Ident | WCharT) "@"`
	Name  string       `@Ident "_"`
	Items []*classNode `( "<" @@* ">" )?`
}

var classParser = participle.MustBuild[classNode](participle.Lexer(classLexer))

// Parse decodes the canonical textual form of a class descriptor, per
// spec §6.1 and §4.5.
func Parse(text string) (*Class, error) {
	node, err := classParser.ParseString("", text)
	if err != nil {
		return nil, errkind.Wrap(errkind.StructureError, err, "parse class descriptor")
	}
	return resolveNode(node)
}

func resolveNode(n *classNode) (*Class, error) {
	switch n.Head {
	case "string":
		if len(n.Items) != 0 {
			return nil, errkind.Errorf(errkind.StructureError, "string class %q must not have fields", n.Name)
		}
		return NewString(n.Name)

	case "struct":
		fields := make([]*Class, len(n.Items))
		for i, it := range n.Items {
			field, err := resolveNode(it)
			if err != nil {
				return nil, err
			}
			fields[i] = field
		}
		return NewStruct(n.Name, fields...)

	case "relation":
		if len(n.Items) < 2 {
			return nil, errkind.Errorf(errkind.StructureError, "relation class %q needs ingress and egress", n.Name)
		}
		ingress, err := resolveNode(n.Items[0])
		if err != nil {
			return nil, err
		}
		egress, err := resolveNode(n.Items[1])
		if err != nil {
			return nil, err
		}
		attrs := make([]*Class, len(n.Items)-2)
		for i, it := range n.Items[2:] {
			attr, err := resolveNode(it)
			if err != nil {
				return nil, err
			}
			attrs[i] = attr
		}
		return NewRelation(n.Name, ingress, egress, attrs...)

	default:
		kind, ok := PrimitiveByName(n.Head)
		if !ok {
			return nil, errkind.Errorf(errkind.TypeError, "unknown class head %q", n.Head)
		}
		if len(n.Items) != 0 {
			return nil, errkind.Errorf(errkind.StructureError, "primitive class %q must not have fields", n.Name)
		}
		return NewPrimitive(n.Name, kind)
	}
}

// Serialize renders c into the canonical textual form of spec §6.1. It
// adds no whitespace of its own; neither Serialize nor Parse strips
// whitespace, so any that a class name contains is kept as is.
func Serialize(c *Class) string {
	var b strings.Builder
	writeNode(&b, c)
	return b.String()
}

func writeNode(b *strings.Builder, c *Class) {
	switch c.Kind {
	case KindPrimitive:
		b.WriteString("_")
		b.WriteString(PrimitiveName(c.Primitive))
		b.WriteString("@")
		b.WriteString(c.Name)
		b.WriteString("_")

	case KindString:
		b.WriteString("_string@")
		b.WriteString(c.Name)
		b.WriteString("_")

	case KindStruct:
		b.WriteString("_struct@")
		b.WriteString(c.Name)
		b.WriteString("_<")
		for _, f := range c.Fields {
			writeNode(b, f)
		}
		b.WriteString(">")

	case KindRelation:
		b.WriteString("_relation@")
		b.WriteString(c.Name)
		b.WriteString("_<")
		writeNode(b, c.Ingress)
		writeNode(b, c.Egress)
		for _, a := range c.Attrs {
			writeNode(b, a)
		}
		b.WriteString(">")
	}
}
