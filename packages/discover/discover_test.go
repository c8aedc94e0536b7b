package discover

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/snot/packages/core/runner"
)

const loginTest = `package shop

import "testing"

// Login with a valid account
//
// :component: Auth
// :steps:
//     1. Open the page
func TestLogin(t *testing.T) {}

func TestLogout(t *testing.T) {}

func TestMain(m *testing.M) {}

func Testimony(t *testing.T) {}

func TestHelper(t *testing.T, extra int) {}

func helper() {}
`

const cartSuite = `package shop_test

import (
	"testing"

	s "github.com/stretchr/testify/suite"
)

func TestCart(t *testing.T) {
	s.Run(t, new(CartSuite))
}

// Totals add up
func (c *CartSuite) TestTotal() {}

func (c *CartSuite) TestEmpty() {}

func (c *CartSuite) SetupTest() {}
`

const cartType = `package shop_test

import "github.com/stretchr/testify/suite"

type CartSuite struct {
	suite.Suite
}
`

func writeModule(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
	return root
}

func TestDiscover(t *testing.T) {
	root := writeModule(t, map[string]string{
		"go.mod":                  "module example.com/app\n\ngo 1.25\n",
		"shop/login_test.go":      loginTest,
		"shop/cart_test.go":       cartSuite,
		"shop/cart_types_test.go": cartType,
		"shop/shop.go":            "package shop\n\nfunc TestNotATest() {}\n",
		"empty/empty.go":          "package empty\n",
		"shop/testdata/x_test.go": "package broken {",
		"_scratch/x_test.go":      "package broken {",
		"nested/go.mod":           "module example.com/nested\n",
		"nested/n_test.go":        "package nested\n\nimport \"testing\"\n\nfunc TestNested(t *testing.T) {}\n",
		"ignored/ignored_test.go": "//go:build ignore\n\npackage ignored {",
	})

	mod, pkgs, err := Discover(root, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, "example.com/app", mod.Path)
	require.Len(t, pkgs, 1)

	pkg := pkgs[0]
	assert.Equal(t, "example.com/app/shop", pkg.ImportPath)

	var names []string
	for _, test := range pkg.Tests {
		names = append(names, test.Name)
	}
	assert.Equal(t, []string{"TestCart/TestTotal", "TestCart/TestEmpty", "TestLogin", "TestLogout"}, names)

	total := pkg.Tests[0]
	assert.Equal(t, "CartSuite", total.Receiver)
	assert.Equal(t, "CartSuite.TestTotal", total.Qualified())
	assert.Equal(t, "Totals add up\n", total.Doc)
	assert.Equal(t, "shop/cart_test.go", total.File)

	login := pkg.Tests[2]
	assert.Equal(t, "Login with a valid account\n\n:component: Auth\n:steps:\n    1. Open the page\n", login.Doc)
	assert.Equal(t, 10, login.Line)
}

func TestDiscover_PatternsAndRun(t *testing.T) {
	root := writeModule(t, map[string]string{
		"go.mod":          "module example.com/app\n",
		"a/a_test.go":     "package a\n\nimport \"testing\"\n\nfunc TestA(t *testing.T) {}\nfunc TestB(t *testing.T) {}\n",
		"a/sub/s_test.go": "package sub\n\nimport \"testing\"\n\nfunc TestS(t *testing.T) {}\n",
	})

	_, pkgs, err := Discover(root, []string{"./a"}, Options{})
	require.NoError(t, err)
	require.Len(t, pkgs, 1)
	assert.Len(t, pkgs[0].Tests, 2)

	_, pkgs, err = Discover(filepath.Join(root, "a"), []string{"./...", "./sub"}, Options{Run: regexp.MustCompile(`^Test[AS]$`)})
	require.NoError(t, err)
	require.Len(t, pkgs, 2)
	assert.Equal(t, "example.com/app/a", pkgs[0].ImportPath)
	assert.Equal(t, "TestA", pkgs[0].Tests[0].Name)
	assert.Len(t, pkgs[0].Tests, 1)
	assert.Equal(t, "example.com/app/a/sub", pkgs[1].ImportPath)

	_, _, err = Discover(root, []string{"./missing"}, Options{})
	assert.Error(t, err)
}

func TestFindModule(t *testing.T) {
	root := writeModule(t, map[string]string{
		"go.mod":       "module example.com/app\n",
		"deep/x/y.txt": "",
	})
	mod, err := FindModule(filepath.Join(root, "deep", "x"))
	require.NoError(t, err)
	assert.Equal(t, "example.com/app", mod.Path)

	p, err := mod.ImportPath(filepath.Join(root, "deep", "x"))
	require.NoError(t, err)
	assert.Equal(t, "example.com/app/deep/x", p)

	p, err = mod.ImportPath(root)
	require.NoError(t, err)
	assert.Equal(t, "example.com/app", p)

	_, err = mod.ImportPath(t.TempDir())
	assert.Error(t, err)

	_, err = FindModule(t.TempDir())
	assert.ErrorIs(t, err, ErrNoModule)
}

func TestPackage_Node(t *testing.T) {
	pkg := &Package{
		ImportPath: "example.com/app/shop",
		Dir:        "/src/shop",
		Tests: []Test{
			{Name: "TestLogin", Function: "TestLogin", File: "shop/login_test.go", Doc: "Login"},
			{Name: "TestCart/TestTotal", Function: "TestTotal", Receiver: "CartSuite", File: "shop/cart_test.go"},
		},
	}

	cases := runner.Flatten(pkg.Node())
	require.Len(t, cases, 2)
	assert.Equal(t, "example.com/app/shop.TestLogin", cases[0].Identity)
	assert.Equal(t, "Login", cases[0].Doc)
	assert.Equal(t, "example.com/app/shop.TestCart/TestTotal", cases[1].Identity)
	assert.Equal(t, "CartSuite.TestTotal", cases[1].QualifiedName)
	assert.Equal(t, "CartSuite", cases[1].ReceiverType)
	assert.Equal(t, "/src/shop", cases[1].Dir)
}
