// cmd/tools/template-lint/main.go
//
// template-lint compiles and validates template definition files
// without starting the daemon. Guards referenced by definitions are
// stubbed so guard names only need to be spelled, not implemented.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"application-engine/internal/models"
	"application-engine/internal/template"
	"application-engine/pkg/registry"
)

func main() {
	dir := flag.String("dir", "configs/templates", "Directory of template definition files")
	verbose := flag.Bool("v", false, "Print per-template state graphs")
	flag.Parse()

	entries, err := os.ReadDir(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot read %s: %v\n", *dir, err)
		os.Exit(1)
	}

	failed := 0
	checked := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		checked++
		path := filepath.Join(*dir, entry.Name())
		tpl, err := lint(path)
		if err != nil {
			failed++
			fmt.Printf("FAIL  %s\n      %v\n", entry.Name(), err)
			continue
		}
		fmt.Printf("OK    %s (%s, %d states)\n", entry.Name(), tpl.TypeID, len(tpl.States))
		if *verbose {
			printGraph(tpl)
		}
	}

	fmt.Printf("\n%d checked, %d failed\n", checked, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

// lint validates, compiles and structurally checks one definition.
func lint(path string) (*template.Template, error) {
	compiler := registry.NewCompiler()
	for _, name := range guardNames(path) {
		guard := template.Guard{
			Name:  name,
			Check: func(app *models.Application) bool { return true },
		}
		if err := compiler.RegisterGuard(guard); err != nil {
			return nil, err
		}
	}
	tpl, err := registry.LoadFile(path, compiler)
	if err != nil {
		return nil, err
	}
	if err := tpl.Validate(); err != nil {
		return nil, err
	}
	return tpl, nil
}

// guardNames extracts every guard referenced anywhere in the file so
// the compiler can resolve them with stubs.
func guardNames(path string) []string {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var def registry.Definition
	if err := json.Unmarshal(raw, &def); err != nil {
		return nil
	}
	seen := map[string]bool{}
	for _, state := range def.States {
		for _, tr := range state.Transitions {
			if tr.Guard != "" {
				seen[tr.Guard] = true
			}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func printGraph(tpl *template.Template) {
	states := make([]string, 0, len(tpl.States))
	for name := range tpl.States {
		states = append(states, name)
	}
	sort.Strings(states)
	for _, name := range states {
		state := tpl.States[name]
		marker := " "
		if name == tpl.Initial {
			marker = "*"
		}
		fmt.Printf("      %s %s [%s]\n", marker, name, state.Lifecycle.Kind)
		events := make([]string, 0, len(state.Transitions))
		for event := range state.Transitions {
			events = append(events, string(event))
		}
		sort.Strings(events)
		for _, event := range events {
			tr := state.Transitions[template.Event(event)]
			suffix := ""
			if tr.Guard != nil {
				suffix = " ?" + tr.Guard.Name
			}
			if tr.NoOp {
				suffix += " (noop)"
			}
			fmt.Printf("          %s -> %s%s\n", event, tr.Target, suffix)
		}
	}
}
