package vm

import (
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/tools/txtar"
)

// TestEndToEndScenarios runs every fixture under testdata/ as a txtar
// archive of exactly two files: input.ty (the program) and output.txt
// (its expected stdout). Each fixture corresponds to one of the
// canonical end-to-end scenarios -- recursion, tag/match dispatch,
// closures, rest-pattern+guard matching, try/catch/finally, and
// generators -- proving the lexer/parser/compiler/VM pipeline handles
// each one together rather than in isolated unit tests.
func TestEndToEndScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/*.txtar")
	if err != nil {
		t.Fatalf("glob testdata: %v", err)
	}
	if len(paths) == 0 {
		t.Fatal("no txtar fixtures found under testdata/")
	}
	for _, path := range paths {
		path := path
		t.Run(strings.TrimSuffix(filepath.Base(path), ".txtar"), func(t *testing.T) {
			ar, err := txtar.ParseFile(path)
			if err != nil {
				t.Fatalf("parse txtar: %v", err)
			}
			var input, want *string
			for _, f := range ar.Files {
				data := string(f.Data)
				switch f.Name {
				case "input.ty":
					input = &data
				case "output.txt":
					want = &data
				}
			}
			if input == nil || want == nil {
				t.Fatalf("%s: fixture must contain both input.ty and output.txt", path)
			}
			got, _ := run(t, *input)
			if got != *want {
				t.Fatalf("output mismatch:\n got: %q\nwant: %q", got, *want)
			}
		})
	}
}
