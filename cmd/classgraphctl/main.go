// Command classgraphctl is a thin interactive CLI wrapping the public
// Database API (spec §6.4), out of core scope by spec §1 but kept here as
// the external collaborator that exercises it end to end.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/alecthomas/kong"

	"github.com/mpiechota/classgraph/database"
	"github.com/mpiechota/classgraph/errkind"
	"github.com/mpiechota/classgraph/logx"
	"github.com/mpiechota/classgraph/mem"
	"github.com/mpiechota/classgraph/typesystem"
)

var cli struct {
	File string `arg:"" help:"Path to the classgraph file" type:"path"`
	Mode string `help:"Open mode: read, write, or default" default:"default" enum:"read,write,default"`

	ClassAdd      ClassAddCmd      `cmd:"" name:"class-add" help:"Register a class"`
	ClassRemove   ClassRemoveCmd   `cmd:"" name:"class-remove" help:"Remove a class and all its nodes"`
	ClassList     ClassListCmd     `cmd:"" name:"class-list" help:"List registered classes"`
	ClassContains ClassContainsCmd `cmd:"" name:"class-contains" help:"Check whether a class is registered"`
	NodeAdd       NodeAddCmd       `cmd:"" name:"node-add" help:"Insert a node"`
	NodePrint     NodePrintCmd     `cmd:"" name:"node-print" help:"Print every live node of a class"`
}

func main() {
	ctx := kong.Parse(&cli)
	db, err := openDatabase()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	if err := ctx.Run(db); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func openDatabase() (*database.Database, error) {
	mode := map[string]database.OpenMode{"read": database.Read, "write": database.Write, "default": database.Default}[cli.Mode]

	f, err := os.OpenFile(cli.File, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	dev, err := mem.NewFileDevice(f)
	if err != nil {
		return nil, err
	}
	return database.Open(dev, mode, database.WithLogger(logx.Nop()))
}

// ClassAddCmd registers a class from its serialized descriptor.
type ClassAddCmd struct {
	Descriptor string `arg:"" help:"Serialized class descriptor"`
}

func (c *ClassAddCmd) Run(db *database.Database) error {
	class, err := typesystem.Parse(c.Descriptor)
	if err != nil {
		return err
	}
	header, err := db.AddClass(class)
	if err != nil {
		return err
	}
	fmt.Printf("registered %q (magic=%#x)\n", class.Name, header.Magic)
	return nil
}

// ClassRemoveCmd removes a class and every node of it.
type ClassRemoveCmd struct {
	Descriptor string `arg:"" help:"Serialized class descriptor"`
}

func (c *ClassRemoveCmd) Run(db *database.Database) error {
	class, err := typesystem.Parse(c.Descriptor)
	if err != nil {
		return err
	}
	if err := db.RemoveClass(class); err != nil {
		return err
	}
	fmt.Printf("removed %q\n", class.Name)
	return nil
}

// ClassListCmd lists every registered class.
type ClassListCmd struct{}

func (c *ClassListCmd) Run(db *database.Database) error {
	return db.PrintAllClasses(os.Stdout)
}

// ClassContainsCmd checks whether a class is registered.
type ClassContainsCmd struct {
	Descriptor string `arg:"" help:"Serialized class descriptor"`
}

func (c *ClassContainsCmd) Run(db *database.Database) error {
	class, err := typesystem.Parse(c.Descriptor)
	if err != nil {
		return err
	}
	fmt.Println(db.Contains(class))
	return nil
}

// NodeAddCmd inserts one node of a class, with its leaf arguments given
// as strings in the flattened order Class.Count() describes.
type NodeAddCmd struct {
	Descriptor string   `arg:"" help:"Serialized class descriptor"`
	Args       []string `arg:"" optional:"" help:"Leaf arguments, in flattened declaration order"`
}

func (c *NodeAddCmd) Run(db *database.Database) error {
	class, err := typesystem.Parse(c.Descriptor)
	if err != nil {
		return err
	}
	values, rest, err := parseLeafArgs(class, c.Args)
	if err != nil {
		return err
	}
	if len(rest) != 0 {
		return errkind.Errorf(errkind.BadArgument, "%d unconsumed argument(s)", len(rest))
	}
	obj, err := typesystem.New(class, values...)
	if err != nil {
		return err
	}
	if err := db.AddNode(obj); err != nil {
		return err
	}
	fmt.Println("inserted")
	return nil
}

// parseLeafArgs converts raw CLI strings into Go values matching class's
// leaf shape, in the same left-to-right order typesystem.New expects them.
func parseLeafArgs(class *typesystem.Class, args []string) ([]interface{}, []string, error) {
	switch class.Kind {
	case typesystem.KindPrimitive:
		if len(args) == 0 {
			return nil, nil, errkind.Errorf(errkind.BadArgument, "missing argument for %q", class.Name)
		}
		v, err := parsePrimitive(class.Primitive, args[0])
		if err != nil {
			return nil, nil, err
		}
		return []interface{}{v}, args[1:], nil

	case typesystem.KindString:
		if len(args) == 0 {
			return nil, nil, errkind.Errorf(errkind.BadArgument, "missing argument for %q", class.Name)
		}
		return []interface{}{args[0]}, args[1:], nil

	case typesystem.KindStruct:
		var values []interface{}
		rest := args
		for _, f := range class.Fields {
			var part []interface{}
			var err error
			part, rest, err = parseLeafArgs(f, rest)
			if err != nil {
				return nil, nil, err
			}
			values = append(values, part...)
		}
		return values, rest, nil

	case typesystem.KindRelation:
		if len(args) < 2 {
			return nil, nil, errkind.Errorf(errkind.BadArgument, "relation %q needs ingress and egress ids", class.Name)
		}
		ingress, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return nil, nil, errkind.Wrapf(errkind.BadArgument, err, "ingress id")
		}
		egress, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return nil, nil, errkind.Wrapf(errkind.BadArgument, err, "egress id")
		}
		values := []interface{}{ingress, egress}
		rest := args[2:]
		for _, a := range class.Attrs {
			var part []interface{}
			var err error
			part, rest, err = parseLeafArgs(a, rest)
			if err != nil {
				return nil, nil, err
			}
			values = append(values, part...)
		}
		return values, rest, nil

	default:
		return nil, nil, errkind.Errorf(errkind.TypeError, "class %q has unknown kind", class.Name)
	}
}

func parsePrimitive(kind typesystem.PrimitiveKind, s string) (interface{}, error) {
	switch kind {
	case typesystem.PBool:
		return strconv.ParseBool(s)
	case typesystem.PDouble, typesystem.PFloat:
		return strconv.ParseFloat(s, 64)
	case typesystem.PUnsignedInt, typesystem.PLongLongUnsignedInt, typesystem.PLongUnsignedInt,
		typesystem.PShortUnsignedInt, typesystem.PUnsignedChar, typesystem.PWCharT:
		return strconv.ParseUint(s, 10, 64)
	default:
		return strconv.ParseInt(s, 10, 64)
	}
}

// NodePrintCmd prints every live node of a class.
type NodePrintCmd struct {
	Descriptor string `arg:"" help:"Serialized class descriptor"`
}

func (c *NodePrintCmd) Run(db *database.Database) error {
	class, err := typesystem.Parse(c.Descriptor)
	if err != nil {
		return err
	}
	return db.PrintAllNodes(class, os.Stdout)
}
