package main

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

const (
	marker     = "liverepo:model"
	outputName = "detached_gen.go"
	importPath = "github.com/fulldump/liverepo/detach"
)

type model struct {
	Name   string
	Fields []field
}

type field struct {
	Name   string
	Helper string // Value, Field, Slice, Map or Set
}

// parseModels returns the struct types of dir marked with //liverepo:model,
// sorted by name.
func parseModels(dir string) (pkg string, models []model, err error) {
	fset := token.NewFileSet()
	pkgs, err := parser.ParseDir(fset, dir, func(info fs.FileInfo) bool {
		name := info.Name()
		return !strings.HasSuffix(name, "_test.go") && name != outputName
	}, parser.ParseComments)
	if err != nil {
		return "", nil, fmt.Errorf("parse %s: %w", dir, err)
	}
	if len(pkgs) != 1 {
		return "", nil, fmt.Errorf("expected one package in %s, found %d", dir, len(pkgs))
	}

	for name, p := range pkgs {
		pkg = name
		for _, file := range p.Files {
			for _, decl := range file.Decls {
				gen, ok := decl.(*ast.GenDecl)
				if !ok || gen.Tok != token.TYPE {
					continue
				}
				for _, spec := range gen.Specs {
					ts := spec.(*ast.TypeSpec)
					st, ok := ts.Type.(*ast.StructType)
					if !ok || !marked(gen.Doc, ts.Doc) {
						continue
					}
					models = append(models, model{
						Name:   ts.Name.Name,
						Fields: structFields(st),
					})
				}
			}
		}
	}

	sort.Slice(models, func(i, j int) bool {
		return models[i].Name < models[j].Name
	})

	return pkg, models, nil
}

func marked(groups ...*ast.CommentGroup) bool {
	for _, group := range groups {
		if group == nil {
			continue
		}
		for _, c := range group.List {
			if strings.TrimSpace(strings.TrimPrefix(c.Text, "//")) == marker {
				return true
			}
		}
	}
	return false
}

func structFields(st *ast.StructType) []field {
	fields := []field{}
	for _, f := range st.Fields.List {
		helper := helperFor(f.Type)
		if len(f.Names) == 0 {
			fields = append(fields, field{Name: embeddedName(f.Type), Helper: helper})
			continue
		}
		for _, name := range f.Names {
			if name.Name == "_" {
				continue
			}
			fields = append(fields, field{Name: name.Name, Helper: helper})
		}
	}
	return fields
}

func helperFor(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.ArrayType:
		if t.Len == nil {
			return "Slice"
		}
	case *ast.MapType:
		if isEmptyStruct(t.Value) {
			return "Set"
		}
		return "Map"
	case *ast.Ident:
		if !predeclared[t.Name] {
			return "Field"
		}
	case *ast.SelectorExpr, *ast.IndexExpr, *ast.IndexListExpr:
		return "Field"
	}
	return "Value"
}

var predeclared = map[string]bool{
	"any": true, "bool": true, "byte": true, "error": true, "rune": true, "string": true,
	"complex64": true, "complex128": true, "float32": true, "float64": true,
	"int": true, "int8": true, "int16": true, "int32": true, "int64": true,
	"uint": true, "uint8": true, "uint16": true, "uint32": true, "uint64": true, "uintptr": true,
}

func isEmptyStruct(expr ast.Expr) bool {
	st, ok := expr.(*ast.StructType)
	return ok && len(st.Fields.List) == 0
}

func embeddedName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return embeddedName(t.X)
	case *ast.SelectorExpr:
		return t.Sel.Name
	case *ast.IndexExpr:
		return embeddedName(t.X)
	case *ast.Ident:
		return t.Name
	}
	return ""
}

func render(pkg string, models []model) ([]byte, error) {
	buf := &bytes.Buffer{}
	fmt.Fprintf(buf, "// Code generated by detachgen. DO NOT EDIT.\n\n")
	fmt.Fprintf(buf, "package %s\n\n", pkg)
	fmt.Fprintf(buf, "import %q\n", importPath)

	for _, m := range models {
		fmt.Fprintf(buf, "\nfunc (m *%s) Detached() *%s {\n", m.Name, m.Name)
		fmt.Fprintf(buf, "\tif m == nil {\n\t\treturn nil\n\t}\n")
		fmt.Fprintf(buf, "\treturn &%s{\n", m.Name)
		for _, f := range m.Fields {
			arg := "m." + f.Name
			if f.Helper == "Field" {
				arg = "&" + arg
			}
			fmt.Fprintf(buf, "\t\t%s: detach.%s(%s),\n", f.Name, f.Helper, arg)
		}
		fmt.Fprintf(buf, "\t}\n}\n")
	}

	return format.Source(buf.Bytes())
}

func outputPath(dir string) string {
	return filepath.Join(dir, outputName)
}
