package vm

import (
	"fmt"

	tyerrors "ty/internal/errors"
	"ty/internal/value"
)

// runtimeErrorTagName is the tag stamped on a Value carrying a runtime
// failure that crossed into Ty's catchable throw/catch machinery (a
// nested call's Go-level runtime error, once it reaches a frame with no
// active handler of its own -- see dispatchError in vm.go). Tagging it
// like any other value.TagTable entry lets a catch pattern like
// `err as RuntimeError(msg)` match it with the same machinery as a
// user-defined tag.
const runtimeErrorTagName = "RuntimeError"

func (v *VM) runtimeErr(f *Frame, format string, args ...any) error {
	return tyerrors.New(tyerrors.RuntimeError, fmt.Sprintf(format, args...), v.locate(f))
}

// runtimeErrorValue wraps msg as a RuntimeError(message)-tagged string,
// the value a try/catch pattern observes when a nested call's runtime
// error (not a user `throw`) propagates into a handler.
func (v *VM) runtimeErrorValue(msg string) value.Value {
	id := v.Tags.Intern(runtimeErrorTagName)
	s := v.str(msg)
	return value.Value{Kind: s.Kind, Data: s.Data, Tags: v.Tags.Push(0, id)}
}
