package vm

import (
	"path/filepath"

	"ty/internal/compiler"
	"ty/internal/parser"
	"ty/internal/value"
)

// execModule runs a statically-imported module's initializer exactly
// once per VM (regardless of how many import/use statements reference
// it), caching the resulting namespace Dict by the *compiler.ModuleArtifact
// the loader already deduplicates module compilation by.
func (v *VM) execModule(art *compiler.ModuleArtifact) (*value.Dict, error) {
	if ns, ok := v.modCache[art]; ok {
		return ns, nil
	}
	locals := make([]value.Value, art.Chunk.NumSlots)
	copy(locals, v.globals)
	nf := &Frame{chunk: art.Chunk, locals: locals, name: "<module>", vm: v}
	if _, err := v.runFrame(nf); err != nil {
		return nil, err
	}
	ns := value.NewDict(v.Heap)
	for name, slot := range art.Exports {
		ns.Set(v.str(name), nf.locals[slot])
	}
	v.modCache[art] = ns
	return ns, nil
}

// evalSource implements OpEval's dynamic-code path: parse and compile
// src as a fresh module (its own scope, sharing this VM's tag table and
// loader so it can use/import the same modules), and run it. The
// result is always Nil -- a module initializer's top-level statements
// are compiled for effect, not for a trailing expression value, the
// same as a statically imported module.
func (v *VM) evalSource(f *Frame, src string) (value.Value, error) {
	prog, errs := parser.New("<eval>", src).ParseProgram()
	if len(errs) > 0 {
		return value.Nil(), v.runtimeErr(f, "eval: %s", errs[0].Error())
	}
	art, cerrs := compiler.CompileModule(prog, "<eval>", filepath.Dir(v.filePath), v.Tags, v.Loader)
	if len(cerrs) > 0 {
		return value.Nil(), v.runtimeErr(f, "eval: %s", cerrs[0].Error())
	}
	locals := make([]value.Value, art.Chunk.NumSlots)
	copy(locals, v.globals)
	nf := &Frame{chunk: art.Chunk, locals: locals, name: "<eval>", vm: v}
	_, err := v.runFrame(nf)
	return value.Nil(), err
}
