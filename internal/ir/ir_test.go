package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextTypeUniquing(t *testing.T) {
	ctx := NewContext()
	assert.Same(t, ctx.Integral(32), ctx.Integral(32))
	assert.NotSame(t, ctx.Integral(32), ctx.Integral(64))
	assert.Same(t, ctx.Float(64), ctx.Float(64))

	arr1 := ctx.Array(ctx.Integral(8), 4)
	arr2 := ctx.Array(ctx.Integral(8), 4)
	assert.Same(t, arr1, arr2)

	st1 := ctx.AnonStruct(ctx.Integral(32), ctx.Pointer())
	st2 := ctx.AnonStruct(ctx.Integral(32), ctx.Pointer())
	assert.Same(t, st1, st2)

	named := ctx.NamedStruct("Pair", []Type{ctx.Integral(64), ctx.Integral(64)})
	assert.Same(t, named, ctx.NamedStruct("Pair", nil))
}

func TestStructLayoutPadding(t *testing.T) {
	ctx := NewContext()
	// {i8, i32, i8} should pad to 4-byte alignment: offsets 0, 4, 8; size 12.
	st := ctx.AnonStruct(ctx.Integral(8), ctx.Integral(32), ctx.Integral(8))
	assert.Equal(t, 0, st.MemberOffset(0))
	assert.Equal(t, 4, st.MemberOffset(1))
	assert.Equal(t, 8, st.MemberOffset(2))
	assert.Equal(t, 12, st.Size())
	assert.Equal(t, 4, st.Align())
}

func TestIntConstUniquing(t *testing.T) {
	ctx := NewContext()
	a := ctx.Int(32, 7)
	b := ctx.Int(32, 7)
	assert.Same(t, a, b)

	// Truncation: Int(8, 256) wraps to 0.
	c := ctx.Int(8, 256)
	assert.Equal(t, uint64(0), c.Val)
}

func TestValueRefObservesDestruction(t *testing.T) {
	ctx := NewContext()
	alloca := NewAlloca("x", ctx.Integral(32))
	ref := ctx.register(alloca)

	resolved, ok := ref.Resolve(ctx)
	require.True(t, ok)
	assert.Same(t, alloca, resolved)

	ctx.invalidate(0)
	_, ok = ref.Resolve(ctx)
	assert.False(t, ok, "ValueRef must not resolve after invalidation")
}

func TestReplaceAllUsesWithRewritesEveryUser(t *testing.T) {
	ctx := NewContext()
	i32 := ctx.Integral(32)
	a := NewAlloca("a", i32)
	b := NewAlloca("b", i32)

	load1 := NewLoad("v1", a, i32)
	load2 := NewLoad("v2", a, i32)
	assert.Len(t, a.Users(), 2)
	assert.Len(t, b.Users(), 0)

	a.ReplaceAllUsesWith(b)

	assert.Len(t, a.Users(), 0, "replaced value should have no users left")
	assert.Len(t, b.Users(), 2, "replacement should inherit every use")
	assert.Same(t, b, load1.Ptr())
	assert.Same(t, b, load2.Ptr())
}

func TestBasicBlockPredecessorsAndSuccessors(t *testing.T) {
	ctx := NewContext()
	fn := NewFunction("f", ctx.Void(), nil, LinkageInternal)
	entry := NewBasicBlock("entry")
	thenBB := NewBasicBlock("then")
	exitBB := NewBasicBlock("exit")
	fn.AddBlock(entry)
	fn.AddBlock(thenBB)
	fn.AddBlock(exitBB)

	entry.Append(NewBranch(ctx.True(), thenBB, exitBB))
	thenBB.Append(NewGoto(exitBB))
	exitBB.Append(NewReturn(nil))

	assert.ElementsMatch(t, []*BasicBlock{thenBB, exitBB}, entry.Successors())
	assert.ElementsMatch(t, []*BasicBlock{entry, thenBB}, exitBB.Predecessors())
}

func TestPhiIncomingMatchesPredecessors(t *testing.T) {
	ctx := NewContext()
	fn := NewFunction("f", ctx.Integral(32), nil, LinkageInternal)
	entry := NewBasicBlock("entry")
	left := NewBasicBlock("left")
	right := NewBasicBlock("right")
	join := NewBasicBlock("join")
	fn.AddBlock(entry)
	fn.AddBlock(left)
	fn.AddBlock(right)
	fn.AddBlock(join)

	entry.Append(NewBranch(ctx.True(), left, right))
	left.Append(NewGoto(join))
	right.Append(NewGoto(join))

	phi := NewPhi("p", ctx.Integral(32))
	phi.AddIncoming(ctx.Int(32, 1), left)
	phi.AddIncoming(ctx.Int(32, 2), right)
	join.Append(phi)
	join.Append(NewReturn(phi))

	errs := Verify(fn)
	assert.Empty(t, errs)
}

func TestVerifyCatchesMissingTerminator(t *testing.T) {
	ctx := NewContext()
	fn := NewFunction("f", ctx.Void(), nil, LinkageInternal)
	entry := NewBasicBlock("entry")
	fn.AddBlock(entry)
	entry.Append(NewAlloca("a", ctx.Integral(32)))

	errs := Verify(fn)
	require.NotEmpty(t, errs)
}
