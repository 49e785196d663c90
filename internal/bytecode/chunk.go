package bytecode

import (
	"encoding/binary"
	"math"
	"sort"

	"ty/internal/token"
)

// locEntry is one entry of a Chunk's location map: the AST span that
// produced the instruction starting at Offset. Binary search over a
// Chunk's sorted locations recovers the originating span for any
// instruction pointer during error reporting.
type locEntry struct {
	Offset int
	Span   token.Span
}

// Chunk is the linear bytecode buffer for one function body or module
// initializer: a Code/Constants pair with Write/Add helpers, extended
// with inline little-endian operand encoding and a full-span location
// map (rather than a per-instruction line/column pair) so diagnostics
// can report an exact start/end range.
type Chunk struct {
	Code      []byte
	Constants []any
	locations []locEntry
	sealed    bool

	// NumSlots is the local slot count the frame running this chunk
	// needs. Only meaningful for a module's top-level chunk -- a
	// function body's slot count travels alongside its chunk in
	// compiler.FuncTemplate instead, since a FuncTemplate is shared by
	// every closure instantiated from it.
	NumSlots int
}

func NewChunk() *Chunk {
	return &Chunk{}
}

func (c *Chunk) Offset() int { return len(c.Code) }

// Emit appends op and records span as the location of the instruction
// that starts here, returning the offset the opcode byte was written
// at (useful as a jump-patch target).
func (c *Chunk) Emit(op OpCode, span token.Span) int {
	off := len(c.Code)
	c.Code = append(c.Code, byte(op))
	c.locations = append(c.locations, locEntry{Offset: off, Span: span})
	return off
}

func (c *Chunk) WriteByte(b byte)   { c.Code = append(c.Code, b) }
func (c *Chunk) WriteBool(b bool) {
	if b {
		c.Code = append(c.Code, 1)
	} else {
		c.Code = append(c.Code, 0)
	}
}

func (c *Chunk) WriteUint16(v uint16) {
	c.Code = binary.LittleEndian.AppendUint16(c.Code, v)
}

func (c *Chunk) WriteUint32(v uint32) {
	c.Code = binary.LittleEndian.AppendUint32(c.Code, v)
}

func (c *Chunk) WriteInt64(v int64) {
	c.Code = binary.LittleEndian.AppendUint64(c.Code, uint64(v))
}

func (c *Chunk) WriteFloat64(v float64) {
	c.Code = binary.LittleEndian.AppendUint64(c.Code, math.Float64bits(v))
}

// WriteString writes a length-prefixed (uint16 length) UTF-8 string,
// used for member names and symbol names inline in the instruction
// stream.
func (c *Chunk) WriteString(s string) {
	c.WriteUint16(uint16(len(s)))
	c.Code = append(c.Code, s...)
}

// PatchJump overwrites a previously-reserved uint32 jump offset field
// (at patchAt, immediately following the opcode byte) with the distance
// from patchAt+4 to the current end of the code buffer.
func (c *Chunk) PatchJump(patchAt int) {
	c.PatchJumpTo(patchAt, len(c.Code))
}

// PatchJumpTo overwrites a previously-reserved uint32 jump offset field
// at patchAt with the (possibly negative, for a backward branch) signed
// distance from patchAt+4 to target, used for loop back-edges where the
// target precedes the jump instead of following it.
func (c *Chunk) PatchJumpTo(patchAt, target int) {
	offset := target - (patchAt + 4)
	binary.LittleEndian.PutUint32(c.Code[patchAt:patchAt+4], uint32(int32(offset)))
}

func ReadUint16(code []byte, ip int) uint16 { return binary.LittleEndian.Uint16(code[ip:]) }
func ReadUint32(code []byte, ip int) uint32 { return binary.LittleEndian.Uint32(code[ip:]) }
func ReadInt64(code []byte, ip int) int64   { return int64(binary.LittleEndian.Uint64(code[ip:])) }
func ReadFloat64(code []byte, ip int) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(code[ip:]))
}
func ReadString(code []byte, ip int) (string, int) {
	n := int(ReadUint16(code, ip))
	start := ip + 2
	return string(code[start : start+n]), start + n
}

// AddConstant appends val to the constant pool, returning its index. Equal
// values are not deduplicated.
func (c *Chunk) AddConstant(val any) uint32 {
	c.Constants = append(c.Constants, val)
	return uint32(len(c.Constants) - 1)
}

// Seal sorts the location map once a unit finishes compiling, after
// which the code buffer no longer grows and LocationAt can binary
// search it.
func (c *Chunk) Seal() {
	sort.Slice(c.locations, func(i, j int) bool { return c.locations[i].Offset < c.locations[j].Offset })
	c.sealed = true
}

// LocationAt returns the AST span responsible for the instruction at or
// immediately before ip, via binary search over the sealed location
// map.
func (c *Chunk) LocationAt(ip int) (token.Span, bool) {
	if !c.sealed || len(c.locations) == 0 {
		return token.Span{}, false
	}
	i := sort.Search(len(c.locations), func(i int) bool { return c.locations[i].Offset > ip })
	if i == 0 {
		return token.Span{}, false
	}
	return c.locations[i-1].Span, true
}

// Dense reports whether the location map is sealed, non-empty, and starts
// at offset 0. Gaps between later entries are not checked.
func (c *Chunk) Dense() bool {
	if !c.sealed {
		return false
	}
	return len(c.locations) > 0 && c.locations[0].Offset == 0
}
