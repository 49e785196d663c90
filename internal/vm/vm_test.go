package vm

import (
	"strings"
	"testing"

	"ty/internal/compiler"
	"ty/internal/module"
	"ty/internal/parser"
	"ty/internal/value"
)

// run compiles and executes src as a standalone module, returning
// whatever it printed and the final namespace of its exports.
func run(t *testing.T, src string) (string, *value.Dict) {
	t.Helper()
	ns, _, out := runErr(t, src)
	return out, ns
}

func runErr(t *testing.T, src string) (*value.Dict, error, string) {
	t.Helper()
	tags := value.NewTagTable()
	var loader *module.Loader
	loader = module.NewLoader(func(s, fp, dotted string) (any, error) {
		p2, errs := parser.New(fp, s).ParseProgram()
		if len(errs) > 0 {
			return nil, errs[0]
		}
		art, cerrs := compiler.CompileModule(p2, fp, ".", tags, loader)
		if len(cerrs) > 0 {
			return nil, cerrs[0]
		}
		return art, nil
	})
	prog, errs := parser.New("<test>", src).ParseProgram()
	if len(errs) > 0 {
		t.Fatalf("parse error: %v", errs[0])
	}
	art, cerrs := compiler.CompileModule(prog, "<test>", ".", tags, loader)
	if len(cerrs) > 0 {
		t.Fatalf("compile error: %v", cerrs[0])
	}
	var sb strings.Builder
	interp := New(loader, tags, &sb)
	ns, err := interp.RunModule(art, "<test>")
	return ns, err, sb.String()
}

func TestArithmeticAndPrint(t *testing.T) {
	out, _ := run(t, `print(1 + 2 * 3)`)
	if out != "7\n" {
		t.Fatalf("got %q", out)
	}
}

func TestIfElse(t *testing.T) {
	out, _ := run(t, `
if 1 < 2 {
    print("yes")
} else {
    print("no")
}
`)
	if out != "yes\n" {
		t.Fatalf("got %q", out)
	}
}

func TestEachLoopOverArray(t *testing.T) {
	out, _ := run(t, `
let total = 0
for x in [1, 2, 3, 4] {
    total = total + x
}
print(total)
`)
	if out != "10\n" {
		t.Fatalf("got %q", out)
	}
}

func TestFunctionCallWithDefault(t *testing.T) {
	out, _ := run(t, `
function greet(name, greeting = "hello") {
    return greeting + " " + name
}
print(greet("world"))
print(greet("there", "hi"))
`)
	if out != "hello world\nhi there\n" {
		t.Fatalf("got %q", out)
	}
}

func TestRestParams(t *testing.T) {
	out, _ := run(t, `
function sum(*nums) {
    let total = 0
    for n in nums {
        total = total + n
    }
    return total
}
print(sum(1, 2, 3, 4, 5))
`)
	if out != "15\n" {
		t.Fatalf("got %q", out)
	}
}

func TestClassMethodAndInit(t *testing.T) {
	out, _ := run(t, `
class Counter {
    count = 0
    function init(start) {
        self.count = start
    }
    function bump() {
        self.count = self.count + 1
        return self.count
    }
}
let c = Counter(10)
print(c.bump())
print(c.bump())
`)
	if out != "11\n12\n" {
		t.Fatalf("got %q", out)
	}
}

func TestTryCatch(t *testing.T) {
	out, _ := run(t, `
try {
    throw "boom"
} catch e {
    print("caught " + e)
}
`)
	if out != "caught boom\n" {
		t.Fatalf("got %q", out)
	}
}

func TestModuleExports(t *testing.T) {
	_, ns := run(t, `
pub let answer = 42
`)
	if ns == nil {
		t.Fatal("expected a non-nil export namespace")
	}
	val, ok := ns.Get(value.Value{Kind: value.KString, Data: &value.String{Bytes: []byte("answer")}})
	if !ok {
		t.Fatal("expected \"answer\" to be exported")
	}
	if val.Data.(int64) != 42 {
		t.Fatalf("got %v", val.Data)
	}
}

func TestWhileLoop(t *testing.T) {
	out, _ := run(t, `
let i = 0
while i < 5 {
    print(i)
    i = i + 1
}
`)
	if out != "0\n1\n2\n3\n4\n" {
		t.Fatalf("got %q", out)
	}
}

func TestArrayMethods(t *testing.T) {
	out, _ := run(t, `
let xs = [1, 2, 3]
xs.push(4)
print(xs.len())
print(xs.pop_back())
`)
	if out != "4\n4\n" {
		t.Fatalf("got %q", out)
	}
}

// The six canonical end-to-end scenarios (recursion, tags/match,
// closures, destructuring patterns, exception unwinding, generators)
// live as txtar fixtures under testdata/, run by TestEndToEndScenarios
// in e2e_test.go, rather than as inline Go string literals here.
