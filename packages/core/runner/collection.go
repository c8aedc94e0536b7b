package runner

import (
	"context"
	"fmt"
	"iter"

	"github.com/abdul-hamid-achik/snot/packages/rehydrate"
)

// Node is one element of a test collection: a *Case, a *Group or a *Generator.
type Node interface {
	node()
}

// Case is a single test.
type Case struct {
	Identity      string // unique within a run, e.g. example.com/shop.TestLogin
	File          string // source file, used for the automation key
	QualifiedName string // name within the file, e.g. TestLogin or CheckoutSuite.TestTotal
	Function      string // function or method name the title falls back to
	Doc           string

	Package string // import path of the package holding the test
	Dir     string // directory of that package

	DataDriven   bool
	Args         []any
	Requirements []string // requirements bundled with a data-driven invocation

	// Receiver is the value a method test is bound to; ReceiverType names its
	// registered factory when replayed.
	Receiver     any
	ReceiverType string

	// Replay overrides the descriptor derived from the fields above.
	Replay *rehydrate.Descriptor

	// Run is the body for in-process execution.
	Run func(ctx context.Context) error
}

// Group is a nested collection.
type Group struct {
	Name     string
	Children []Node
}

// Invocation is one call produced by a Generator.
type Invocation struct {
	Name         string // appended to the template identity; defaults to the index
	Args         []any
	Requirements []string
	Run          func(ctx context.Context) error
}

// Generator is a data-driven test: one template invoked once per Invocation.
// Invocations may be ranged over more than once.
type Generator struct {
	Template    Case
	Invocations iter.Seq[Invocation]
}

func (*Case) node()      {}
func (*Group) node()     {}
func (*Generator) node() {}

// Invocations adapts a slice for Generator.Invocations.
func Invocations(invs ...Invocation) iter.Seq[Invocation] {
	return func(yield func(Invocation) bool) {
		for _, inv := range invs {
			if !yield(inv) {
				return
			}
		}
	}
}

// Flatten lists the leaf cases of root in traversal order. Generated cases
// are marked data-driven and carry their invocation's arguments.
func Flatten(root Node) []*Case {
	var cases []*Case
	walk(root, func(c *Case) { cases = append(cases, c) })
	return cases
}

func walk(n Node, visit func(*Case)) {
	switch n := n.(type) {
	case nil:
	case *Case:
		visit(n)
	case *Group:
		for _, child := range n.Children {
			walk(child, visit)
		}
	case *Generator:
		if n.Invocations == nil {
			return
		}
		i := 0
		for inv := range n.Invocations {
			visit(n.expand(i, inv))
			i++
		}
	}
}

func (g *Generator) expand(i int, inv Invocation) *Case {
	c := g.Template
	name := inv.Name
	if name == "" {
		name = fmt.Sprint(i)
	}
	c.Identity = g.Template.Identity + "/" + name
	if c.QualifiedName != "" {
		c.QualifiedName += "/" + name
	}
	c.DataDriven = true
	c.Args = inv.Args
	c.Requirements = append(append([]string(nil), g.Template.Requirements...), inv.Requirements...)
	if inv.Run != nil {
		c.Run = inv.Run
	}
	return &c
}
