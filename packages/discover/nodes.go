package discover

import (
	"github.com/abdul-hamid-achik/snot/packages/core/runner"
)

// Identity is the identity of a test of package importPath, matching the
// Package and Test fields of go test -json events.
func Identity(importPath, testName string) string {
	return importPath + "." + testName
}

// Case returns the runner case of t.
func (p *Package) Case(t Test) *runner.Case {
	return &runner.Case{
		Identity:      Identity(p.ImportPath, t.Name),
		File:          t.File,
		QualifiedName: t.Qualified(),
		Function:      t.Function,
		Doc:           t.Doc,
		Package:       p.ImportPath,
		Dir:           p.Dir,
		ReceiverType:  t.Receiver,
	}
}

// Node returns the package as a group of cases.
func (p *Package) Node() runner.Node {
	g := &runner.Group{Name: p.ImportPath}
	for _, t := range p.Tests {
		g.Children = append(g.Children, p.Case(t))
	}
	return g
}
