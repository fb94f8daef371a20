// Package generator writes typed service proxies for interfaces marked with
// a //tapestry:proxy directive:
//
//	//tapestry:proxy
//	type Greeter interface {
//	    Greet(name string) string
//	}
//
// For each package it writes proxies_gen.go containing a proxy struct and
// a NewGreeterProxy constructor suitable for ioc.ProxyFactoryFor. Every
// proxy method realizes the service through its ioc.Realizer and forwards
// the call.
package generator

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Directive marks an interface for proxy generation.
const Directive = "//tapestry:proxy"

// OutputFile is the name of the generated file in each package.
const OutputFile = "proxies_gen.go"

// Options configures the generator.
type Options struct {
	DryRun bool
}

// Generator generates proxy code.
type Generator struct {
	opts Options
	fset *token.FileSet
}

// New creates a new generator.
func New(opts Options) *Generator {
	return &Generator{
		opts: opts,
		fset: token.NewFileSet(),
	}
}

// Generate generates proxies for the given package patterns.
func (g *Generator) Generate(patterns ...string) error {
	packages, err := g.findPackages(patterns)
	if err != nil {
		return err
	}

	for _, pkg := range packages {
		if err := g.generatePackage(pkg); err != nil {
			return fmt.Errorf("package %s: %w", pkg, err)
		}
	}

	return nil
}

// Clean removes generated files for the given package patterns.
func (g *Generator) Clean(patterns ...string) error {
	packages, err := g.findPackages(patterns)
	if err != nil {
		return err
	}

	for _, pkg := range packages {
		path := filepath.Join(pkg, OutputFile)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		fmt.Printf("removing %s\n", path)
		if g.opts.DryRun {
			continue
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("package %s: %w", pkg, err)
		}
	}

	return nil
}

// findPackages resolves package patterns to directory paths.
func (g *Generator) findPackages(patterns []string) ([]string, error) {
	var packages []string

	for _, pattern := range patterns {
		if !strings.HasSuffix(pattern, "/...") {
			packages = append(packages, pattern)
			continue
		}

		root := strings.TrimSuffix(pattern, "/...")
		if root == "" {
			root = "."
		}
		err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				return nil
			}
			base := filepath.Base(path)
			if path != root && (strings.HasPrefix(base, ".") || strings.HasPrefix(base, "_") ||
				base == "vendor" || base == "testdata") {
				return filepath.SkipDir
			}
			entries, err := os.ReadDir(path)
			if err != nil {
				return nil
			}
			for _, entry := range entries {
				if !entry.IsDir() && isSourceFile(entry.Name()) {
					packages = append(packages, path)
					break
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return packages, nil
}

func isSourceFile(name string) bool {
	return strings.HasSuffix(name, ".go") && !strings.HasSuffix(name, "_test.go") && name != OutputFile
}

// generatePackage writes the proxy file for one package directory.
func (g *Generator) generatePackage(pkgPath string) error {
	entries, err := os.ReadDir(pkgPath)
	if err != nil {
		return err
	}

	var files []*ast.File
	for _, entry := range entries {
		if entry.IsDir() || !isSourceFile(entry.Name()) {
			continue
		}
		file, err := parser.ParseFile(g.fset, filepath.Join(pkgPath, entry.Name()), nil, parser.ParseComments)
		if err != nil {
			return err
		}
		files = append(files, file)
	}
	if len(files) == 0 {
		return nil
	}

	pkgName := files[0].Name.Name
	var proxies []*ProxyInfo
	for _, file := range files {
		found, err := g.findProxies(file)
		if err != nil {
			return err
		}
		proxies = append(proxies, found...)
	}
	if len(proxies) == 0 {
		return nil
	}
	sort.Slice(proxies, func(i, j int) bool { return proxies[i].Interface < proxies[j].Interface })

	outputFile := filepath.Join(pkgPath, OutputFile)
	fmt.Printf("generating %s\n", outputFile)
	if g.opts.DryRun {
		return nil
	}

	code, err := render(pkgName, proxies)
	if err != nil {
		return err
	}
	return os.WriteFile(outputFile, code, 0o644)
}

// ProxyInfo describes one interface to proxy.
type ProxyInfo struct {
	Interface string
	Methods   []MethodInfo
	// Imports maps package names used by the method signatures to import
	// paths.
	Imports map[string]string
}

// MethodInfo is one interface method.
type MethodInfo struct {
	Name     string
	Params   []ParamInfo
	Results  []string
	Variadic bool
}

// ParamInfo is one method parameter.
type ParamInfo struct {
	Name string
	Type string
}

// findProxies returns the marked interfaces declared in file.
func (g *Generator) findProxies(file *ast.File) ([]*ProxyInfo, error) {
	imports := fileImports(file)
	var out []*ProxyInfo

	for _, decl := range file.Decls {
		genDecl, ok := decl.(*ast.GenDecl)
		if !ok || genDecl.Tok != token.TYPE {
			continue
		}
		for _, spec := range genDecl.Specs {
			typeSpec, ok := spec.(*ast.TypeSpec)
			if !ok {
				continue
			}
			doc := typeSpec.Doc
			if doc == nil && len(genDecl.Specs) == 1 {
				doc = genDecl.Doc
			}
			if !hasDirective(doc) {
				continue
			}
			iface, ok := typeSpec.Type.(*ast.InterfaceType)
			if !ok {
				return nil, fmt.Errorf("%s: %s is marked for proxying but is not an interface",
					g.fset.Position(typeSpec.Pos()), typeSpec.Name.Name)
			}
			if typeSpec.TypeParams != nil {
				return nil, fmt.Errorf("%s: generic interface %s cannot be proxied",
					g.fset.Position(typeSpec.Pos()), typeSpec.Name.Name)
			}
			info, err := g.inspectInterface(typeSpec.Name.Name, iface, imports)
			if err != nil {
				return nil, err
			}
			out = append(out, info)
		}
	}
	return out, nil
}

func hasDirective(doc *ast.CommentGroup) bool {
	if doc == nil {
		return false
	}
	for _, c := range doc.List {
		if strings.TrimSpace(c.Text) == Directive {
			return true
		}
	}
	return false
}

func fileImports(file *ast.File) map[string]string {
	out := make(map[string]string)
	for _, imp := range file.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		name := path[strings.LastIndex(path, "/")+1:]
		if strings.HasPrefix(name, "v") && len(name) > 1 && strings.Trim(name[1:], "0123456789") == "" {
			// github.com/foo/bar/v5 is package bar.
			trimmed := strings.TrimSuffix(path, "/"+name)
			name = trimmed[strings.LastIndex(trimmed, "/")+1:]
		}
		if i := strings.Index(name, ".v"); i > 0 {
			name = name[:i]
		}
		if imp.Name != nil {
			name = imp.Name.Name
		}
		out[name] = path
	}
	return out
}

func (g *Generator) inspectInterface(name string, iface *ast.InterfaceType, imports map[string]string) (*ProxyInfo, error) {
	info := &ProxyInfo{Interface: name, Imports: make(map[string]string)}
	for _, field := range iface.Methods.List {
		fn, ok := field.Type.(*ast.FuncType)
		if !ok || len(field.Names) == 0 {
			return nil, fmt.Errorf("%s: %s embeds %s; embedded interfaces cannot be proxied",
				g.fset.Position(field.Pos()), name, g.typeString(field.Type))
		}
		for _, methodName := range field.Names {
			m := MethodInfo{Name: methodName.Name}
			n := 0
			for _, p := range fn.Params.List {
				typ := p.Type
				if ell, ok := typ.(*ast.Ellipsis); ok {
					m.Variadic = true
					typ = ell.Elt
				}
				g.collectImports(typ, imports, info.Imports)
				names := p.Names
				if len(names) == 0 {
					names = []*ast.Ident{nil}
				}
				for range names {
					m.Params = append(m.Params, ParamInfo{Name: "a" + strconv.Itoa(n), Type: g.typeString(typ)})
					n++
				}
			}
			if fn.Results != nil {
				for _, r := range fn.Results.List {
					g.collectImports(r.Type, imports, info.Imports)
					count := len(r.Names)
					if count == 0 {
						count = 1
					}
					for i := 0; i < count; i++ {
						m.Results = append(m.Results, g.typeString(r.Type))
					}
				}
			}
			info.Methods = append(info.Methods, m)
		}
	}
	return info, nil
}

// collectImports records the imports referenced by expr.
func (g *Generator) collectImports(expr ast.Expr, available, used map[string]string) {
	ast.Inspect(expr, func(n ast.Node) bool {
		sel, ok := n.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		if ident, ok := sel.X.(*ast.Ident); ok {
			if path, ok := available[ident.Name]; ok {
				used[ident.Name] = path
			}
		}
		return true
	})
}

// typeString prints a type expression as source.
func (g *Generator) typeString(expr ast.Expr) string {
	var buf bytes.Buffer
	if err := format.Node(&buf, g.fset, expr); err != nil {
		return fmt.Sprintf("%T", expr)
	}
	return buf.String()
}
