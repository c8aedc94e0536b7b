package discover

import (
	"fmt"
	"go/ast"
	"go/build"
	"go/parser"
	"go/token"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

const suiteImportPath = "github.com/stretchr/testify/suite"

// scanState collects a directory. Suites may span files, so they are
// resolved once every file is read.
type scanState struct {
	fset    *token.FileSet
	mod     *Module
	funcs   []Test
	methods map[string][]Test // receiver type -> Test* methods
	runners map[string][]Test // suite type -> runner functions
}

func scanDir(mod *Module, ctx *build.Context, dir string, run *regexp.Regexp) (*Package, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	st := &scanState{
		fset:    token.NewFileSet(),
		mod:     mod,
		methods: make(map[string][]Test),
		runners: make(map[string][]Test),
	}
	found := false
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, "_test.go") {
			continue
		}
		if ok, err := ctx.MatchFile(dir, name); err != nil || !ok {
			continue
		}
		if err := st.scanFile(filepath.Join(dir, name)); err != nil {
			return nil, err
		}
		found = true
	}
	if !found {
		return nil, nil
	}

	importPath, err := mod.ImportPath(dir)
	if err != nil {
		return nil, err
	}
	pkg := &Package{ImportPath: importPath, Dir: dir}
	for _, t := range st.resolve() {
		top, _, _ := strings.Cut(t.Name, "/")
		if run != nil && !run.MatchString(top) {
			continue
		}
		pkg.Tests = append(pkg.Tests, t)
	}
	return pkg, nil
}

func (st *scanState) scanFile(filename string) error {
	f, err := parser.ParseFile(st.fset, filename, nil, parser.ParseComments)
	if err != nil {
		return fmt.Errorf("parse %s: %w", filename, err)
	}
	rel, err := filepath.Rel(st.mod.Root, filename)
	if err != nil {
		rel = filename
	}
	rel = filepath.ToSlash(rel)

	testingName := importName(f, "testing")
	suiteName := importName(f, suiteImportPath)

	for _, d := range f.Decls {
		decl, ok := d.(*ast.FuncDecl)
		if !ok {
			continue
		}
		name := decl.Name.Name
		if !isTestName(name) {
			continue
		}
		t := Test{
			Name:     name,
			Function: name,
			Doc:      decl.Doc.Text(),
			File:     rel,
			Line:     st.fset.Position(decl.Pos()).Line,
		}
		if decl.Recv != nil {
			recv := receiverType(decl.Recv)
			if recv == "" || decl.Type.Params.NumFields() != 0 {
				continue
			}
			t.Receiver = recv
			st.methods[recv] = append(st.methods[recv], t)
			continue
		}
		if testingName == "" || !takesTestingT(decl.Type, testingName) {
			continue
		}
		st.funcs = append(st.funcs, t)
		if suiteName != "" {
			for _, typ := range suiteRuns(decl.Body, suiteName) {
				st.runners[typ] = append(st.runners[typ], t)
			}
		}
	}
	return nil
}

// resolve turns suite runners into one test per suite method, ordered by
// file and line.
func (st *scanState) resolve() []Test {
	var tests []Test
	for _, fn := range st.funcs {
		var runs []string
		for typ, runners := range st.runners {
			for _, r := range runners {
				if r.Name == fn.Name && r.File == fn.File {
					runs = append(runs, typ)
				}
			}
		}
		if len(runs) == 0 {
			tests = append(tests, fn)
			continue
		}
		sort.Strings(runs)
		n := len(tests)
		for _, typ := range runs {
			for _, m := range st.methods[typ] {
				m.Name = fn.Name + "/" + m.Function
				tests = append(tests, m)
			}
		}
		if len(tests) == n {
			// a suite without test methods still runs as a test
			tests = append(tests, fn)
		}
	}
	sort.SliceStable(tests, func(i, j int) bool {
		if tests[i].File != tests[j].File {
			return tests[i].File < tests[j].File
		}
		return tests[i].Line < tests[j].Line
	})
	return tests
}

// isTestName reports whether name is a test function name the way go test
// decides it: Test followed by nothing or a non-lowercase rune.
func isTestName(name string) bool {
	if name == "TestMain" || !strings.HasPrefix(name, "Test") {
		return false
	}
	if len(name) == len("Test") {
		return true
	}
	r, _ := utf8.DecodeRuneInString(name[len("Test"):])
	return !unicode.IsLower(r)
}

func importName(f *ast.File, importPath string) string {
	for _, imp := range f.Imports {
		p, err := strconv.Unquote(imp.Path.Value)
		if err != nil || p != importPath {
			continue
		}
		if imp.Name != nil {
			return imp.Name.Name
		}
		return path.Base(p)
	}
	return ""
}

func takesTestingT(ft *ast.FuncType, testingName string) bool {
	if ft.Params.NumFields() != 1 || ft.Results.NumFields() != 0 {
		return false
	}
	star, ok := ft.Params.List[0].Type.(*ast.StarExpr)
	if !ok {
		return false
	}
	return isSelector(star.X, testingName, "T")
}

func isSelector(expr ast.Expr, pkg, name string) bool {
	sel, ok := expr.(*ast.SelectorExpr)
	if !ok || sel.Sel.Name != name {
		return false
	}
	id, ok := sel.X.(*ast.Ident)
	return ok && id.Name == pkg
}

func receiverType(recv *ast.FieldList) string {
	if recv.NumFields() != 1 {
		return ""
	}
	typ := recv.List[0].Type
	if star, ok := typ.(*ast.StarExpr); ok {
		typ = star.X
	}
	if id, ok := typ.(*ast.Ident); ok {
		return id.Name
	}
	return ""
}

// suiteRuns finds the suite types passed to suite.Run in body, as
// new(T), &T{} or T{}.
func suiteRuns(body *ast.BlockStmt, suiteName string) []string {
	if body == nil {
		return nil
	}
	var types []string
	ast.Inspect(body, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok || !isSelector(call.Fun, suiteName, "Run") || len(call.Args) != 2 {
			return true
		}
		if typ := constructedType(call.Args[1]); typ != "" {
			types = append(types, typ)
		}
		return true
	})
	return types
}

func constructedType(expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.CallExpr:
		if id, ok := e.Fun.(*ast.Ident); ok && id.Name == "new" && len(e.Args) == 1 {
			if t, ok := e.Args[0].(*ast.Ident); ok {
				return t.Name
			}
		}
	case *ast.UnaryExpr:
		if e.Op == token.AND {
			return constructedType(e.X)
		}
	case *ast.CompositeLit:
		if t, ok := e.Type.(*ast.Ident); ok {
			return t.Name
		}
	}
	return ""
}
