// Package discover finds the tests of a Go module without building it. It
// reads _test.go files with go/parser and keeps, per test, the documentation
// comment the result metadata is parsed from.
//
// Two kinds of test are found:
//
//	func TestLogin(t *testing.T)           // reported as TestLogin
//	func (s *CartSuite) TestTotal()        // reported as TestCart/TestTotal
//
// where TestCart runs the suite with suite.Run(t, new(CartSuite)).
package discover

import (
	"errors"
	"fmt"
	"go/build"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/mod/modfile"
)

// Test is one discovered test.
type Test struct {
	Name     string // as reported by go test, e.g. TestCart/TestTotal
	Function string // function or method name
	Receiver string // suite type of a suite method
	Doc      string
	File     string // slash separated, relative to the module root
	Line     int
}

// Qualified is the name of the test within its file: the function name, or
// Receiver.Method for suite methods.
func (t Test) Qualified() string {
	if t.Receiver != "" {
		return t.Receiver + "." + t.Function
	}
	return t.Function
}

// Package is a directory with tests.
type Package struct {
	ImportPath string
	Dir        string
	Tests      []Test
}

// Module is the module the packages were discovered in.
type Module struct {
	Path string
	Root string
}

type Options struct {
	// Run keeps only tests whose top-level name matches.
	Run *regexp.Regexp
	// Context selects files by build constraints; build.Default when nil.
	Context *build.Context
}

var ErrNoModule = errors.New("no go.mod found")

// FindModule walks up from dir to the nearest go.mod.
func FindModule(dir string) (*Module, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	for d := abs; ; d = filepath.Dir(d) {
		data, err := os.ReadFile(filepath.Join(d, "go.mod"))
		if err == nil {
			modPath := modfile.ModulePath(data)
			if modPath == "" {
				return nil, fmt.Errorf("%s: missing module directive", filepath.Join(d, "go.mod"))
			}
			return &Module{Path: modPath, Root: d}, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		if filepath.Dir(d) == d {
			return nil, fmt.Errorf("%w in %s or any parent", ErrNoModule, abs)
		}
	}
}

// ImportPath returns the import path of dir inside the module.
func (m *Module) ImportPath(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(m.Root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside module %s", dir, m.Path)
	}
	if rel == "." {
		return m.Path, nil
	}
	return path.Join(m.Path, filepath.ToSlash(rel)), nil
}

// Discover finds the tests matched by patterns, resolved against dir. A
// pattern is a directory, optionally ending in /... to include every
// directory beneath it. No patterns means "./...".
func Discover(dir string, patterns []string, opts Options) (*Module, []*Package, error) {
	mod, err := FindModule(dir)
	if err != nil {
		return nil, nil, err
	}
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}

	seen := make(map[string]bool)
	var dirs []string
	for _, pattern := range patterns {
		matched, err := expand(dir, pattern)
		if err != nil {
			return nil, nil, err
		}
		for _, d := range matched {
			if !seen[d] {
				seen[d] = true
				dirs = append(dirs, d)
			}
		}
	}
	sort.Strings(dirs)

	ctx := opts.Context
	if ctx == nil {
		ctx = &build.Default
	}

	var pkgs []*Package
	for _, d := range dirs {
		pkg, err := scanDir(mod, ctx, d, opts.Run)
		if err != nil {
			return nil, nil, err
		}
		if pkg != nil && len(pkg.Tests) > 0 {
			pkgs = append(pkgs, pkg)
		}
	}
	return mod, pkgs, nil
}

func expand(base, pattern string) ([]string, error) {
	recursive := false
	if pattern == "..." || strings.HasSuffix(pattern, "/...") {
		recursive = true
		pattern = strings.TrimSuffix(strings.TrimSuffix(pattern, "..."), "/")
		if pattern == "" {
			pattern = "."
		}
	}
	root := pattern
	if !filepath.IsAbs(root) {
		root = filepath.Join(base, filepath.FromSlash(pattern))
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("pattern %s: %w", pattern, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("pattern %s: not a directory", pattern)
	}
	if !recursive {
		return []string{root}, nil
	}

	var dirs []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && skipDir(d.Name()) {
			return filepath.SkipDir
		}
		if p != root {
			if _, err := os.Stat(filepath.Join(p, "go.mod")); err == nil {
				// nested module
				return filepath.SkipDir
			}
		}
		dirs = append(dirs, p)
		return nil
	})
	return dirs, err
}

// skipDir mirrors the directories the go command ignores in ./... patterns.
func skipDir(name string) bool {
	return name == "testdata" || name == "vendor" ||
		strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}
