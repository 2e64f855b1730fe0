package goglib

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/obinnaokechukwu/goglib/gobject"
)

// counter is a Referencer that only counts, standing in for a native
// instance. It starts with the implicit first reference.
type counter struct {
	count  int
	refs   int
	unrefs int
}

func newCounter() *counter { return &counter{count: 1} }

func (c *counter) Reference() {
	c.count++
	c.refs++
}

func (c *counter) Unreference() {
	c.count--
	c.unrefs++
}

type named interface {
	Referencer
	Name() string
}

type namedCounter struct {
	counter
	name string
}

func (n *namedCounter) Name() string { return n.name }

var _ named = (*namedCounter)(nil)

// Wrapper types used with MemRuntime.
type widget struct {
	*Object
}

type button struct {
	*Object
	label string
}

type fixture struct {
	rt      *gobject.MemRuntime
	reg     *Registry
	base    gobject.Type
	derived gobject.Type
	leaf    gobject.Type
	orphan  gobject.Type
}

// newFixture registers Widget <- Button <- ToggleButton and an unrelated
// Orphan type. Only Widget has a factory.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	rt := gobject.NewMemRuntime()
	f := &fixture{rt: rt, reg: NewRegistry(rt)}
	f.base = rt.RegisterType("Widget", 0)
	f.derived = rt.RegisterType("Button", f.base)
	f.leaf = rt.RegisterType("ToggleButton", f.derived)
	f.orphan = rt.RegisterType("Orphan", 0)
	f.reg.RegisterFactory(f.base, func(b *Object) ObjectWrapper { return &widget{b} })
	return f
}

// newWidget creates a handle and its wrapper, returning the Ref that owns
// the initial reference.
func (f *fixture) newWidget(t *testing.T, typ gobject.Type) Ref[*widget] {
	t.Helper()
	h := f.rt.New(typ)
	r := Wrap[*widget](f.reg, h, false)
	require.False(t, r.IsNil())
	return r
}

// balanced asserts that every reference taken was given back and the
// implicit first reference of each created instance was released too.
func (f *fixture) balanced(t *testing.T, created int) {
	t.Helper()
	refs, unrefs := f.rt.Calls()
	require.Equal(t, refs+int64(created), unrefs, "refs=%d unrefs=%d created=%d", refs, unrefs, created)
}
