package compiler

// BuiltinNames lists the free functions every module's top-level scope
// predeclares before any user statement is hoisted, in slot order: slot
// i of a module's top-level Env holds the ith name's builtin value. The
// VM seeds those slots from this same ordered list (vm.SeedBuiltins)
// before running a module's chunk, so the two sides can never drift
// out of slot alignment.
//
// Operations that read as naturally unary/binary keep their own opcode
// (arithmetic, typeof, member/subscript access). Operations that read
// as naturally a method on their receiver (len, keys, push, ...) are
// instead dispatched by the VM's OpCallMethod handler against a
// builtin-method table keyed by receiver kind, the same opcode a
// user-defined method call compiles to -- so `xs.len()` and
// `obj.someMethod()` share one call path. Only genuinely free-standing
// functions -- ones with no natural receiver -- live in this list.
var BuiltinNames = []string{
	"print",
	"println",
	"str",
	"int",
	"real",
	"bool",
	"range",
	"assert",
	"panic",
	"now",
	"sleep",
}
