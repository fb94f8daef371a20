package generator

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func parseProxies(t *testing.T, g *Generator, code string) []*ProxyInfo {
	t.Helper()
	file, err := parser.ParseFile(g.fset, "test.go", code, parser.ParseComments)
	if err != nil {
		t.Fatalf("failed to parse code: %v", err)
	}
	proxies, err := g.findProxies(file)
	if err != nil {
		t.Fatalf("findProxies: %v", err)
	}
	return proxies
}

func TestFindProxies(t *testing.T) {
	code := `
package test

import (
	"context"
	"net/http"
)

//tapestry:proxy
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Keys(prefix ...string) []string
	Reset()
}

// Unmarked is not proxied.
type Unmarked interface {
	Serve(w http.ResponseWriter, r *http.Request)
}
`
	g := New(Options{})
	proxies := parseProxies(t, g, code)
	if len(proxies) != 1 {
		t.Fatalf("expected 1 proxy, got %d", len(proxies))
	}

	p := proxies[0]
	if p.Interface != "Store" {
		t.Errorf("expected interface Store, got %s", p.Interface)
	}
	if len(p.Methods) != 4 {
		t.Fatalf("expected 4 methods, got %d", len(p.Methods))
	}
	if got := p.Imports["context"]; got != "context" {
		t.Errorf("expected context import, got %q", got)
	}
	if _, ok := p.Imports["http"]; ok {
		t.Error("http is only used by the unmarked interface")
	}

	get := p.Methods[0]
	if get.Name != "Get" || len(get.Params) != 2 || len(get.Results) != 2 {
		t.Errorf("unexpected Get signature: %+v", get)
	}
	if get.Params[0].Type != "context.Context" || get.Results[0] != "[]byte" {
		t.Errorf("unexpected Get types: %+v", get)
	}

	keys := p.Methods[2]
	if !keys.Variadic || keys.Params[0].Type != "string" {
		t.Errorf("expected variadic string param, got %+v", keys)
	}

	reset := p.Methods[3]
	if len(reset.Params) != 0 || len(reset.Results) != 0 {
		t.Errorf("unexpected Reset signature: %+v", reset)
	}
}

func TestFindProxiesRejectsEmbedding(t *testing.T) {
	code := `
package test

import "io"

//tapestry:proxy
type ReadStore interface {
	io.Reader
}
`
	g := New(Options{})
	file, err := parser.ParseFile(g.fset, "test.go", code, parser.ParseComments)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.findProxies(file); err == nil || !strings.Contains(err.Error(), "embedded") {
		t.Errorf("expected embedded interface error, got %v", err)
	}
}

func TestFindProxiesRejectsStruct(t *testing.T) {
	code := `
package test

//tapestry:proxy
type Store struct{}
`
	g := New(Options{})
	file, err := parser.ParseFile(g.fset, "test.go", code, parser.ParseComments)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.findProxies(file); err == nil {
		t.Error("expected an error for a non-interface type")
	}
}

func TestFileImportsVersionSuffix(t *testing.T) {
	code := `
package test

import (
	"github.com/go-chi/chi/v5"
	"gopkg.in/yaml.v3"
	z "go.uber.org/zap"
)
`
	file, err := parser.ParseFile(token.NewFileSet(), "test.go", code, parser.ImportsOnly)
	if err != nil {
		t.Fatal(err)
	}
	imports := fileImports(file)
	for name, path := range map[string]string{
		"chi":  "github.com/go-chi/chi/v5",
		"yaml": "gopkg.in/yaml.v3",
		"z":    "go.uber.org/zap",
	} {
		if imports[name] != path {
			t.Errorf("imports[%q] = %q, want %q", name, imports[name], path)
		}
	}
}

func TestRender(t *testing.T) {
	code := `
package store

import "context"

//tapestry:proxy
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Keys(prefix ...string) []string
	Reset()
}
`
	g := New(Options{})
	proxies := parseProxies(t, g, code)

	out, err := render("store", proxies)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	src := string(out)

	for _, want := range []string{
		"// Code generated by tapestry generate. DO NOT EDIT.",
		`"github.com/pthm/tapestry/lib/ioc"`,
		`"context"`,
		"type storeProxy struct",
		"func NewStoreProxy(r ioc.Realizer[Store]) Store",
		"return p.r.Delegate().Get(a0, a1)",
		"return p.r.Delegate().Keys(a0...)",
		"\tp.r.Delegate().Reset()",
	} {
		if !strings.Contains(src, want) {
			t.Errorf("generated code missing %q:\n%s", want, src)
		}
	}

	if _, err := parser.ParseFile(token.NewFileSet(), OutputFile, out, 0); err != nil {
		t.Errorf("generated code does not parse: %v", err)
	}
}

func TestRenderInsideIoc(t *testing.T) {
	code := `
package ioc

//tapestry:proxy
type Greeter interface {
	Greet(name string) string
}
`
	g := New(Options{})
	out, err := render("ioc", parseProxies(t, g, code))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(string(out), "lib/ioc") {
		t.Error("package ioc must not import itself")
	}
	if !strings.Contains(string(out), "r Realizer[Greeter]") {
		t.Errorf("expected unqualified Realizer:\n%s", out)
	}
}

func TestGenerateAndClean(t *testing.T) {
	root := t.TempDir()
	pkg := filepath.Join(root, "store")
	if err := os.MkdirAll(pkg, 0o755); err != nil {
		t.Fatal(err)
	}
	src := `package store

//tapestry:proxy
type Store interface {
	Len() int
}
`
	if err := os.WriteFile(filepath.Join(pkg, "store.go"), []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	// Directories starting with an underscore are skipped.
	skipped := filepath.Join(root, "_skip")
	if err := os.MkdirAll(skipped, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(skipped, "skip.go"), []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	g := New(Options{})
	if err := g.Generate(root + "/..."); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := os.Stat(filepath.Join(pkg, OutputFile)); err != nil {
		t.Fatalf("expected %s: %v", OutputFile, err)
	}
	if _, err := os.Stat(filepath.Join(skipped, OutputFile)); !os.IsNotExist(err) {
		t.Error("expected _skip to be ignored")
	}

	// A second run ignores the generated file and rewrites it.
	if err := g.Generate(root + "/..."); err != nil {
		t.Fatalf("second Generate: %v", err)
	}

	if err := g.Clean(root + "/..."); err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if _, err := os.Stat(filepath.Join(pkg, OutputFile)); !os.IsNotExist(err) {
		t.Error("expected generated file to be removed")
	}
}

func TestGenerateDryRun(t *testing.T) {
	pkg := t.TempDir()
	src := "package p\n\n//tapestry:proxy\ntype Counter interface {\n\tInc()\n}\n"
	if err := os.WriteFile(filepath.Join(pkg, "p.go"), []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := New(Options{DryRun: true}).Generate(pkg); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(pkg, OutputFile)); !os.IsNotExist(err) {
		t.Error("dry run must not write files")
	}
}
