package generator

import (
	"bytes"
	"fmt"
	"go/format"
	"sort"
	"strings"
	"text/template"
	"unicode"
)

// iocImport is the package providing ioc.Realizer.
const iocImport = "github.com/pthm/tapestry/lib/ioc"

// render produces the formatted proxy file for a package.
func render(pkgName string, proxies []*ProxyInfo) ([]byte, error) {
	imports := make(map[string]string)
	for _, p := range proxies {
		for name, path := range p.Imports {
			imports[name] = path
		}
	}
	realizer := "ioc.Realizer"
	if pkgName == "ioc" {
		realizer = "Realizer"
	} else {
		imports["ioc"] = iocImport
	}

	type importLine struct{ Name, Path string }
	var lines []importLine
	for name, path := range imports {
		line := importLine{Path: path}
		if !strings.HasSuffix(path, "/"+name) {
			line.Name = name
		}
		lines = append(lines, line)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Path < lines[j].Path })

	tmpl, err := template.New("proxy").Funcs(template.FuncMap{
		"unexport": unexport,
		"params":   paramList,
		"args":     argList,
		"results":  resultList,
	}).Parse(proxyTemplate)
	if err != nil {
		return nil, err
	}

	data := struct {
		Package  string
		Imports  []importLine
		Realizer string
		Proxies  []*ProxyInfo
	}{
		Package:  pkgName,
		Imports:  lines,
		Realizer: realizer,
		Proxies:  proxies,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}
	formatted, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format source: %w\n%s", err, buf.Bytes())
	}
	return formatted, nil
}

func unexport(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

func paramList(m MethodInfo) string {
	parts := make([]string, len(m.Params))
	for i, p := range m.Params {
		typ := p.Type
		if m.Variadic && i == len(m.Params)-1 {
			typ = "..." + typ
		}
		parts[i] = p.Name + " " + typ
	}
	return strings.Join(parts, ", ")
}

func argList(m MethodInfo) string {
	parts := make([]string, len(m.Params))
	for i, p := range m.Params {
		parts[i] = p.Name
		if m.Variadic && i == len(m.Params)-1 {
			parts[i] += "..."
		}
	}
	return strings.Join(parts, ", ")
}

func resultList(m MethodInfo) string {
	switch len(m.Results) {
	case 0:
		return ""
	case 1:
		return " " + m.Results[0]
	}
	return " (" + strings.Join(m.Results, ", ") + ")"
}

const proxyTemplate = `// Code generated by tapestry generate. DO NOT EDIT.

package {{.Package}}

import (
{{- range .Imports}}
	{{if .Name}}{{.Name}} {{end}}"{{.Path}}"
{{- end}}
)
{{range $p := .Proxies}}{{$impl := printf "%sProxy" (unexport $p.Interface)}}
type {{$impl}} struct {
	r {{$.Realizer}}[{{$p.Interface}}]
}

// New{{$p.Interface}}Proxy returns a {{$p.Interface}} that realizes the service on its first method call.
func New{{$p.Interface}}Proxy(r {{$.Realizer}}[{{$p.Interface}}]) {{$p.Interface}} {
	return &{{$impl}}{r: r}
}
{{range $m := $p.Methods}}
func (p *{{$impl}}) {{$m.Name}}({{params $m}}){{results $m}} {
	{{if $m.Results}}return {{end}}p.r.Delegate().{{$m.Name}}({{args $m}})
}
{{end}}{{end}}`
