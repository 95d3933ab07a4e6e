package main

import (
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const modulePath = "pqrsd"

// layerRule lists what a layer of a bounded-context service may import. Paths
// in local are relative to the service root; external entries are third-party
// module prefixes. The standard library is always allowed.
type layerRule struct {
	local    []string
	external []string
	// open layers may import anything outside contexts/ except cmd/.
	open bool
}

var layerRules = map[string]layerRule{
	"domain": {
		local:    []string{"domain"},
		external: []string{"cloud.google.com/go/civil"},
	},
	"ports": {
		local:    []string{"domain"},
		external: []string{"cloud.google.com/go/civil", modulePath + "/contracts"},
	},
	"application": {
		local: []string{"application", "domain", "ports"},
		external: []string{
			"cloud.google.com/go/civil",
			"github.com/cenkalti/backoff/v4",
			"github.com/go-playground/validator/v10",
			modulePath + "/contracts",
		},
	},
	"transport": {
		local: []string{"transport"},
	},
	"adapters": {open: true},
}

type violation struct {
	File   string
	Line   int
	Import string
	Rule   string
}

func main() {
	violations, err := collectViolations("contexts")
	if err != nil {
		fmt.Fprintf(os.Stderr, "walk contexts: %v\n", err)
		os.Exit(2)
	}
	if len(violations) == 0 {
		fmt.Println("boundary checks passed")
		return
	}

	sort.Slice(violations, func(i, j int) bool {
		if violations[i].File != violations[j].File {
			return violations[i].File < violations[j].File
		}
		return violations[i].Line < violations[j].Line
	})
	fmt.Println("boundary violations found:")
	for _, v := range violations {
		fmt.Printf("- %s:%d imports %q (%s)\n", v.File, v.Line, v.Import, v.Rule)
	}
	os.Exit(1)
}

func collectViolations(root string) ([]violation, error) {
	var out []violation
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		parts := strings.Split(filepath.ToSlash(path), "/")
		// contexts/<context>/<service>/<layer>/...
		if len(parts) < 5 {
			return nil
		}
		serviceRoot := strings.Join([]string{modulePath, parts[0], parts[1], parts[2]}, "/")
		found, err := checkFile(path, parts[3], serviceRoot)
		if err != nil {
			return err
		}
		out = append(out, found...)
		return nil
	})
	return out, err
}

func checkFile(path string, layer string, serviceRoot string) ([]violation, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	rule, known := layerRules[layer]

	var out []violation
	for _, imp := range file.Imports {
		importPath := strings.Trim(imp.Path.Value, `"`)
		report := func(reason string) {
			out = append(out, violation{
				File:   filepath.ToSlash(path),
				Line:   fset.Position(imp.Pos()).Line,
				Import: importPath,
				Rule:   reason,
			})
		}

		if hasPrefix(importPath, modulePath+"/contexts") && !hasPrefix(importPath, serviceRoot) {
			report("cross-service imports are forbidden")
			continue
		}
		if hasPrefix(importPath, modulePath+"/cmd") {
			report("services must not import cmd")
			continue
		}
		if !known {
			report(fmt.Sprintf("unknown layer %q", layer))
			continue
		}
		if rule.open || isStdlib(importPath) {
			continue
		}
		if hasPrefix(importPath, serviceRoot) {
			if !withinLocal(importPath, serviceRoot, rule.local) {
				report(layer + " must not depend on " + strings.TrimPrefix(importPath, serviceRoot+"/"))
			}
			continue
		}
		if !matchesAny(importPath, rule.external) {
			report(layer + " import is outside its allowlist")
		}
	}
	return out, nil
}

func withinLocal(importPath string, serviceRoot string, local []string) bool {
	for _, layer := range local {
		if hasPrefix(importPath, serviceRoot+"/"+layer) {
			return true
		}
	}
	return false
}

func matchesAny(importPath string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if hasPrefix(importPath, prefix) {
			return true
		}
	}
	return false
}

func hasPrefix(path string, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func isStdlib(importPath string) bool {
	if hasPrefix(importPath, modulePath) {
		return false
	}
	first, _, _ := strings.Cut(importPath, "/")
	return !strings.Contains(first, ".")
}
