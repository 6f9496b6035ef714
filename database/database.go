// Package database implements the Database facade of spec §4.10/§6.3: the
// single entry point a host opens a classgraph file through, dispatching
// every node operation to the size-appropriate node-storage variant.
// Grounded on original_source/src/db_struct/database.hpp's constructor and
// OpenMode handling, and on the teacher's persistence.OpenStore for the
// "construct collaborators, return one handle" shape.
package database

import (
	"fmt"
	"io"
	"strings"

	"github.com/mpiechota/classgraph/catalog"
	"github.com/mpiechota/classgraph/errkind"
	"github.com/mpiechota/classgraph/logx"
	"github.com/mpiechota/classgraph/mem"
	"github.com/mpiechota/classgraph/nodestore"
	"github.com/mpiechota/classgraph/pattern"
	"github.com/mpiechota/classgraph/typesystem"
)

// OpenMode selects how Open treats the backing device's existing
// contents, per spec §4.10.
type OpenMode int

const (
	// Read fails with StructureError if the device holds no valid
	// superblock.
	Read OpenMode = iota
	// Write clears the device and writes a fresh, empty superblock.
	Write
	// Default attempts Read and falls back to Write on StructureError or
	// BadArgument, mirroring the original's InitializeSuperblock.
	Default
)

// Option configures a Database at Open time.
type Option func(*options)

type options struct {
	logger logx.Logger
}

// WithLogger routes the database's diagnostics through logger.
func WithLogger(logger logx.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Database is the classgraph facade: the allocator, class catalog, and a
// cache of open node-storage views share its backing file for as long as
// it is held, per spec §5's resource-lifecycle note.
type Database struct {
	f      *mem.File
	sb     *mem.Superblock
	alloc  *mem.Allocator
	cat    *catalog.Storage
	logger logx.Logger

	stores map[string]nodestore.NodeStore
}

// Open constructs a Database over dev according to mode.
func Open(dev mem.Device, mode OpenMode, opts ...Option) (*Database, error) {
	cfg := &options{logger: logx.Nop()}
	for _, opt := range opts {
		opt(cfg)
	}
	logger := cfg.logger

	f := mem.NewFile(dev)
	sb, err := openSuperblock(f, mode, logger)
	if err != nil {
		return nil, err
	}

	alloc := mem.NewAllocator(f, sb, logger)
	cat := catalog.New(f, sb, alloc, logger)
	logger.Info("database opened")

	return &Database{
		f:      f,
		sb:     sb,
		alloc:  alloc,
		cat:    cat,
		logger: logger,
		stores: map[string]nodestore.NodeStore{},
	}, nil
}

func openSuperblock(f *mem.File, mode OpenMode, logger logx.Logger) (*mem.Superblock, error) {
	switch mode {
	case Read:
		logger.Debug("opening database", "mode", "read")
		return mem.ReadSuperblock(f)

	case Write:
		logger.Debug("opening database", "mode", "write")
		return mem.InitSuperblock(f)

	case Default:
		logger.Debug("opening database", "mode", "default")
		sb, err := mem.ReadSuperblock(f)
		if err == nil {
			return sb, nil
		}
		if !errkind.Is(err, errkind.StructureError) && !errkind.Is(err, errkind.BadArgument) {
			return nil, err
		}
		logger.Error("superblock read failed, reinitializing", "error", err)
		return mem.InitSuperblock(f)

	default:
		return nil, errkind.Errorf(errkind.BadArgument, "unknown open mode %d", mode)
	}
}

// AddClass persists class's descriptor.
func (d *Database) AddClass(class *typesystem.Class) (*catalog.ClassHeader, error) {
	return d.cat.AddClass(class)
}

// RemoveClass drops all of class's nodes and its descriptor.
func (d *Database) RemoveClass(class *typesystem.Class) error {
	delete(d.stores, typesystem.Serialize(class))
	return d.cat.RemoveClass(class)
}

// Contains reports whether class is registered.
func (d *Database) Contains(class *typesystem.Class) bool {
	return d.cat.Contains(class)
}

func (d *Database) storeFor(class *typesystem.Class) (nodestore.NodeStore, error) {
	key := typesystem.Serialize(class)
	if s, ok := d.stores[key]; ok {
		return s, nil
	}

	header, err := d.cat.Find(class)
	if err != nil {
		return nil, err
	}

	var s nodestore.NodeStore
	if _, fixed := class.Size(); fixed {
		s, err = nodestore.NewValStore(d.f, d.alloc, d.cat, header, class, d.logger)
	} else {
		s, err = nodestore.NewVarStore(d.f, d.alloc, d.cat, header, class, d.logger)
	}
	if err != nil {
		return nil, err
	}

	d.stores[key] = s
	return s, nil
}

// AddNode persists obj, dispatching to the size-appropriate storage for
// obj.Class.
func (d *Database) AddNode(obj *typesystem.ObjectValue) error {
	s, err := d.storeFor(obj.Class)
	if err != nil {
		return err
	}
	return s.AddNode(obj)
}

// RemoveNodesIf removes every live node of class matching pred and returns
// the count removed.
func (d *Database) RemoveNodesIf(class *typesystem.Class, pred func(*nodestore.Iterator) bool) (int, error) {
	s, err := d.storeFor(class)
	if err != nil {
		return 0, err
	}
	return s.RemoveNodesIf(pred)
}

// VisitNodes calls fn with the id and decoded object of every live node of
// class matching pred.
func (d *Database) VisitNodes(class *typesystem.Class, pred func(*nodestore.Iterator) bool, fn func(id uint64, obj *typesystem.ObjectValue)) error {
	s, err := d.storeFor(class)
	if err != nil {
		return err
	}
	return s.VisitNodes(pred, fn)
}

// CollectNodesIf returns every live node of class matching pred, in the
// node store's iteration order (ascending id order for fixed-size classes).
func (d *Database) CollectNodesIf(class *typesystem.Class, pred func(*nodestore.Iterator) bool) ([]*typesystem.ObjectValue, error) {
	var out []*typesystem.ObjectValue
	err := d.VisitNodes(class, pred, func(_ uint64, obj *typesystem.ObjectValue) {
		out = append(out, obj)
	})
	return out, err
}

// PrintAllClasses writes one line per registered class descriptor to sink.
func (d *Database) PrintAllClasses(sink io.Writer) error {
	return d.cat.VisitClasses(func(_ *catalog.ClassHeader, class *typesystem.Class) error {
		_, err := fmt.Fprintln(sink, typesystem.Serialize(class))
		return err
	})
}

// PrintAllNodes writes the ToString rendering of every live node of class
// to sink, in the same order as PrintNodesIf.
func (d *Database) PrintAllNodes(class *typesystem.Class, sink io.Writer) error {
	return d.PrintNodesIf(class, nil, sink)
}

// PrintNodesIf writes the ToString rendering of every live node of class
// matching pred to sink, in the node store's iteration order (ascending id
// order for fixed-size classes).
func (d *Database) PrintNodesIf(class *typesystem.Class, pred func(*nodestore.Iterator) bool, sink io.Writer) error {
	var writeErr error
	err := d.VisitNodes(class, pred, func(id uint64, obj *typesystem.ObjectValue) {
		if writeErr != nil {
			return
		}
		_, writeErr = fmt.Fprintf(sink, "%d: %s\n", id, obj.ToString())
	})
	if err != nil {
		return err
	}
	return writeErr
}

// PatternMatch runs p against the database's live nodes and writes one
// line per match to sink, per spec §4.11.
func (d *Database) PatternMatch(p *pattern.Pattern, sink io.Writer) error {
	return pattern.Match(d, p, func(r pattern.Result) error {
		parts := make([]string, 0, 1+len(r.Leaves))
		parts = append(parts, r.Center.ToString())
		for _, leaf := range r.Leaves {
			parts = append(parts, leaf.ToString())
		}
		_, err := fmt.Fprintf(sink, "%d: (%s)\n", r.CenterID, strings.Join(parts, ", "))
		return err
	})
}
