package value

import "bytes"

// Equal implements the value equality table: structural comparison for
// primitives, arrays, tuples and strings; reference comparison for
// objects, functions and blobs; and in every case, matching tag stacks
// are required.
func Equal(a, b Value) bool {
	if a.Tags != b.Tags {
		return false
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KNil, KSentinel:
		return true
	case KBoolean:
		return a.Data.(bool) == b.Data.(bool)
	case KInteger:
		return a.Data.(int64) == b.Data.(int64)
	case KReal:
		return a.Data.(float64) == b.Data.(float64)
	case KString:
		return bytes.Equal(bytesOf(a.Data.(*String)), bytesOf(b.Data.(*String)))
	case KArray:
		ax, bx := a.Data.(*Array).Elems, b.Data.(*Array).Elems
		if len(ax) != len(bx) {
			return false
		}
		for i := range ax {
			if !Equal(ax[i], bx[i]) {
				return false
			}
		}
		return true
	case KTuple:
		at, bt := a.Data.(*Tuple), b.Data.(*Tuple)
		if len(at.Elems) != len(bt.Elems) {
			return false
		}
		for i := range at.Elems {
			if !Equal(at.Elems[i], bt.Elems[i]) {
				return false
			}
		}
		return namesEqual(at.Names, bt.Names)
	case KDict:
		ad, bd := a.Data.(*Dict), b.Data.(*Dict)
		if ad.Len() != bd.Len() {
			return false
		}
		eq := true
		ad.Each(func(k, v Value) {
			bv, ok := bd.Get(k)
			if !ok || !Equal(v, bv) {
				eq = false
			}
		})
		return eq
	case KTag:
		return a.Data.(TagID) == b.Data.(TagID)
	case KObject, KFunction, KBlob, KClass, KMethod, KBuiltinFunction,
		KBuiltinMethod, KThread, KPointer:
		return a.Data == b.Data
	default:
		return false
	}
}

func bytesOf(s *String) []byte { return s.Bytes }

func namesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
