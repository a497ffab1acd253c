package passes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scathago/internal/ir"
)

// buildPromotableFunction builds a function with one alloca that is
// only ever stored a constant then immediately loaded back — the
// textbook Mem2Reg fixture.
func buildPromotableFunction(ctx *ir.Context) (*ir.Function, *ir.Alloca) {
	i32 := ctx.Integral(32)
	fn := ir.NewFunction("f", i32, nil, ir.LinkageExported)
	entry := ir.NewBasicBlock("entry")
	fn.AddBlock(entry)

	alloc := ir.NewAlloca("slot", i32)
	entry.Append(alloc)
	entry.Append(ir.NewStore(alloc, ctx.Int(32, 42), i32))
	load := ir.NewLoad("loaded", alloc, i32)
	entry.Append(load)
	entry.Append(ir.NewReturn(load))

	return fn, alloc
}

func TestMem2RegPromotesSingleBlockAlloca(t *testing.T) {
	ctx := ir.NewContext()
	fn, alloc := buildPromotableFunction(ctx)

	changed := (Mem2Reg{}).Apply(fn)
	assert.True(t, changed)

	for _, inst := range fn.Entry().Instructions() {
		assert.NotSame(t, alloc, inst, "alloca should have been promoted away")
		_, isLoad := inst.(*ir.Load)
		assert.False(t, isLoad, "load of the promoted slot should have been replaced")
	}
}

func TestDCERemovesDeadArithmetic(t *testing.T) {
	ctx := ir.NewContext()
	i32 := ctx.Integral(32)
	fn := ir.NewFunction("f", i32, nil, ir.LinkageExported)
	entry := ir.NewBasicBlock("entry")
	fn.AddBlock(entry)

	dead := ir.NewArithmetic("dead", ir.OpAdd, ctx.Int(32, 1), ctx.Int(32, 2))
	entry.Append(dead)
	entry.Append(ir.NewReturn(ctx.Int(32, 0)))

	changed := (DCE{}).Apply(fn)
	assert.True(t, changed)
	for _, inst := range fn.Entry().Instructions() {
		assert.NotSame(t, dead, inst)
	}
}

func TestDCEKeepsSideEffectingStore(t *testing.T) {
	ctx := ir.NewContext()
	i32 := ctx.Integral(32)
	fn := ir.NewFunction("f", i32, nil, ir.LinkageExported)
	entry := ir.NewBasicBlock("entry")
	fn.AddBlock(entry)

	alloc := ir.NewAlloca("slot", i32)
	store := ir.NewStore(alloc, ctx.Int(32, 1), i32)
	entry.Append(alloc)
	entry.Append(store)
	entry.Append(ir.NewReturn(nil))

	(DCE{}).Apply(fn)
	found := false
	for _, inst := range fn.Entry().Instructions() {
		if inst == store {
			found = true
		}
	}
	assert.True(t, found, "a Store must never be eliminated as dead")
}

func TestInvariantPropagationReplacesUseDominatedByEqualityBranch(t *testing.T) {
	ctx := ir.NewContext()
	i32 := ctx.Integral(32)
	param := ir.NewParameter("n", i32, 0)
	fn := ir.NewFunction("f", i32, []*ir.Parameter{param}, ir.LinkageExported)

	entry := ir.NewBasicBlock("entry")
	onFive := ir.NewBasicBlock("on_five")
	other := ir.NewBasicBlock("other")
	fn.AddBlock(entry)
	fn.AddBlock(onFive)
	fn.AddBlock(other)

	cmp := ir.NewCompare("is_five", ir.PredEq, param, ctx.Int(32, 5))
	entry.Append(cmp)
	entry.Append(ir.NewBranch(cmp, onFive, other))

	use := ir.NewArithmetic("doubled", ir.OpAdd, param, param)
	onFive.Append(use)
	onFive.Append(ir.NewReturn(use))
	other.Append(ir.NewReturn(ctx.Int(32, 0)))

	changed := (InvariantPropagation{}).Apply(fn)
	require.True(t, changed)

	for _, op := range use.Operands() {
		c, ok := op.(*ir.IntConst)
		require.True(t, ok, "use inside the eq-5 arm should have been rewritten to the constant")
		assert.Equal(t, uint64(5), c.Val)
	}
}

func TestInvariantPropagationLeavesMultiPredecessorBlockAlone(t *testing.T) {
	ctx := ir.NewContext()
	i32 := ctx.Integral(32)
	param := ir.NewParameter("n", i32, 0)
	fn := ir.NewFunction("f", i32, []*ir.Parameter{param}, ir.LinkageExported)

	entry := ir.NewBasicBlock("entry")
	other := ir.NewBasicBlock("other")
	join := ir.NewBasicBlock("join")
	fn.AddBlock(entry)
	fn.AddBlock(other)
	fn.AddBlock(join)

	cmp := ir.NewCompare("is_five", ir.PredEq, param, ctx.Int(32, 5))
	entry.Append(cmp)
	entry.Append(ir.NewBranch(cmp, join, other))
	other.Append(ir.NewGoto(join))

	use := ir.NewArithmetic("doubled", ir.OpAdd, param, param)
	join.Append(use)
	join.Append(ir.NewReturn(use))

	(InvariantPropagation{}).Apply(fn)
	for _, op := range use.Operands() {
		assert.Same(t, param, op, "join has two predecessors, so the eq-5 fact doesn't hold unconditionally")
	}
}

func TestInstCombineFoldsAddChain(t *testing.T) {
	ctx := ir.NewContext()
	i32 := ctx.Integral(32)
	param := ir.NewParameter("n", i32, 0)
	fn := ir.NewFunction("f", i32, []*ir.Parameter{param}, ir.LinkageExported)
	entry := ir.NewBasicBlock("entry")
	fn.AddBlock(entry)

	inner := ir.NewArithmetic("a", ir.OpAdd, param, ctx.Int(32, 3))
	outer := ir.NewArithmetic("b", ir.OpAdd, inner, ctx.Int(32, 4))
	entry.Append(inner)
	entry.Append(outer)
	entry.Append(ir.NewReturn(outer))

	changed := (InstCombine{}).Apply(fn)
	require.True(t, changed)

	var folded *ir.Arithmetic
	for _, inst := range entry.Instructions() {
		if a, ok := inst.(*ir.Arithmetic); ok && a.LHS() == param {
			folded = a
		}
	}
	require.NotNil(t, folded, "expected a single add(param, combined-constant) left in the block")
	c, ok := folded.RHS().(*ir.IntConst)
	require.True(t, ok)
	assert.Equal(t, uint64(7), c.Val)
}

func TestInstCombineCanonicalizesConstantToRHS(t *testing.T) {
	ctx := ir.NewContext()
	i32 := ctx.Integral(32)
	param := ir.NewParameter("n", i32, 0)
	fn := ir.NewFunction("f", i32, []*ir.Parameter{param}, ir.LinkageExported)
	entry := ir.NewBasicBlock("entry")
	fn.AddBlock(entry)

	cmp := ir.NewCompare("c", ir.PredSlt, ctx.Int(32, 1), param)
	entry.Append(cmp)
	entry.Append(ir.NewReturn(ctx.Int(32, 0)))

	changed := (InstCombine{}).Apply(fn)
	require.True(t, changed)

	var canon *ir.Compare
	for _, inst := range entry.Instructions() {
		if c, ok := inst.(*ir.Compare); ok {
			canon = c
		}
	}
	require.NotNil(t, canon)
	assert.Equal(t, ir.PredSgt, canon.Pred, "slt with the constant on the left becomes sgt with it on the right")
	assert.Same(t, param, canon.LHS())
	c, ok := canon.RHS().(*ir.IntConst)
	require.True(t, ok)
	assert.Equal(t, uint64(1), c.Val)
}

func TestInstCombineFoldsZextTrunc(t *testing.T) {
	ctx := ir.NewContext()
	i32 := ctx.Integral(32)
	i8 := ctx.Integral(8)
	param := ir.NewParameter("n", i32, 0)
	fn := ir.NewFunction("f", i32, []*ir.Parameter{param}, ir.LinkageExported)
	entry := ir.NewBasicBlock("entry")
	fn.AddBlock(entry)

	trunc := ir.NewConversionInst("t", ir.ConvTrunc, param, i8)
	zext := ir.NewConversionInst("z", ir.ConvZExt, trunc, i32)
	entry.Append(trunc)
	entry.Append(zext)
	entry.Append(ir.NewReturn(zext))

	changed := (InstCombine{}).Apply(fn)
	require.True(t, changed)

	var masked *ir.Arithmetic
	for _, inst := range entry.Instructions() {
		if a, ok := inst.(*ir.Arithmetic); ok {
			masked = a
		}
	}
	require.NotNil(t, masked, "zext(trunc x) should fold to a masking and")
	assert.Equal(t, ir.OpAnd, masked.Op)
	assert.Same(t, param, masked.LHS())
	c, ok := masked.RHS().(*ir.IntConst)
	require.True(t, ok)
	assert.Equal(t, uint64(0xff), c.Val)
}

func TestLICMHoistsInvariantComputationToPreheader(t *testing.T) {
	ctx := ir.NewContext()
	i32 := ctx.Integral(32)
	param := ir.NewParameter("bound", i32, 0)
	fn := ir.NewFunction("f", i32, []*ir.Parameter{param}, ir.LinkageExported)

	preheader := ir.NewBasicBlock("entry")
	header := ir.NewBasicBlock("loop")
	exit := ir.NewBasicBlock("exit")
	fn.AddBlock(preheader)
	fn.AddBlock(header)
	fn.AddBlock(exit)

	preheader.Append(ir.NewGoto(header))

	invariant := ir.NewArithmetic("limit", ir.OpAdd, param, ctx.Int(32, 1))
	header.Append(invariant)
	cmp := ir.NewCompare("done", ir.PredEq, invariant, ctx.Int(32, 0))
	header.Append(cmp)
	header.Append(ir.NewBranch(cmp, exit, header))
	exit.Append(ir.NewReturn(invariant))

	changed := (LICM{}).Apply(fn)
	require.True(t, changed)
	assert.NotContains(t, header.Instructions(), ir.Instruction(invariant))
	assert.Contains(t, preheader.Instructions(), ir.Instruction(invariant))
}

func TestDCERewritesDeadBranchToDirectGoto(t *testing.T) {
	ctx := ir.NewContext()
	i32 := ctx.Integral(32)
	param := ir.NewParameter("n", i32, 0)
	fn := ir.NewFunction("f", i32, []*ir.Parameter{param}, ir.LinkageExported)

	entry := ir.NewBasicBlock("entry")
	onTrue := ir.NewBasicBlock("on_true")
	onFalse := ir.NewBasicBlock("on_false")
	join := ir.NewBasicBlock("join")
	fn.AddBlock(entry)
	fn.AddBlock(onTrue)
	fn.AddBlock(onFalse)
	fn.AddBlock(join)

	cmp := ir.NewCompare("is_zero", ir.PredEq, param, ctx.Int(32, 0))
	entry.Append(cmp)
	entry.Append(ir.NewBranch(cmp, onTrue, onFalse))

	onTrue.Append(ir.NewArithmetic("unused_t", ir.OpAdd, param, ctx.Int(32, 1)))
	onTrue.Append(ir.NewGoto(join))
	onFalse.Append(ir.NewArithmetic("unused_f", ir.OpAdd, param, ctx.Int(32, 2)))
	onFalse.Append(ir.NewGoto(join))
	join.Append(ir.NewReturn(ctx.Int(32, 42)))

	changed := (DCE{}).Apply(fn)
	require.True(t, changed)

	gt, ok := entry.Terminator().(*ir.Goto)
	require.True(t, ok, "a branch nothing live is control-dependent on should become an unconditional goto")
	assert.Same(t, join, gt.Target())
	assert.Equal(t, []ir.Instruction{onTrue.Terminator()}, onTrue.Instructions(), "the dead arm's own dead computation should be swept too, leaving only its Goto")
	assert.Equal(t, []ir.Instruction{onFalse.Terminator()}, onFalse.Instructions())
}

func TestDCEKeepsBranchControllingALiveStore(t *testing.T) {
	ctx := ir.NewContext()
	i32 := ctx.Integral(32)
	param := ir.NewParameter("n", i32, 0)
	fn := ir.NewFunction("f", i32, []*ir.Parameter{param}, ir.LinkageExported)

	entry := ir.NewBasicBlock("entry")
	onTrue := ir.NewBasicBlock("on_true")
	join := ir.NewBasicBlock("join")
	fn.AddBlock(entry)
	fn.AddBlock(onTrue)
	fn.AddBlock(join)

	cmp := ir.NewCompare("is_zero", ir.PredEq, param, ctx.Int(32, 0))
	entry.Append(cmp)
	entry.Append(ir.NewBranch(cmp, onTrue, join))

	slot := ir.NewAlloca("slot", i32)
	entry.Prepend(slot)
	onTrue.Append(ir.NewStore(slot, ctx.Int(32, 1), i32))
	onTrue.Append(ir.NewGoto(join))
	join.Append(ir.NewReturn(ctx.Int(32, 0)))

	(DCE{}).Apply(fn)
	br, ok := entry.Terminator().(*ir.Branch)
	require.True(t, ok, "a branch guarding a live store must not be rewritten away")
	assert.Same(t, cmp, br.Cond())
}

func TestSimplifyCFGMergesLinearBlockWithTrivialPhi(t *testing.T) {
	ctx := ir.NewContext()
	i32 := ctx.Integral(32)
	param := ir.NewParameter("n", i32, 0)
	fn := ir.NewFunction("f", i32, []*ir.Parameter{param}, ir.LinkageExported)

	entry := ir.NewBasicBlock("entry")
	mid := ir.NewBasicBlock("mid")
	fn.AddBlock(entry)
	fn.AddBlock(mid)

	entry.Append(ir.NewGoto(mid))

	phi := ir.NewPhi("carried", i32)
	phi.AddIncoming(param, entry)
	mid.Append(phi)
	mid.Append(ir.NewReturn(phi))

	changed := (SimplifyCFG{}).Apply(fn)
	require.True(t, changed)
	require.Len(t, fn.Blocks, 1, "mid's single predecessor should let it merge into entry")

	ret, ok := fn.Blocks[0].Terminator().(*ir.Return)
	require.True(t, ok)
	assert.Same(t, param, ret.Val(), "the trivial phi's sole incoming value replaces every use of it")
}

func TestSCCPFoldsConstantBranch(t *testing.T) {
	ctx := ir.NewContext()
	i32 := ctx.Integral(32)
	fn := ir.NewFunction("f", i32, nil, ir.LinkageExported)

	entry := ir.NewBasicBlock("entry")
	taken := ir.NewBasicBlock("taken")
	notTaken := ir.NewBasicBlock("not_taken")
	fn.AddBlock(entry)
	fn.AddBlock(taken)
	fn.AddBlock(notTaken)

	cmp := ir.NewCompare("c", ir.PredEq, ctx.Int(32, 1), ctx.Int(32, 1))
	entry.Append(cmp)
	entry.Append(ir.NewBranch(cmp, taken, notTaken))
	taken.Append(ir.NewReturn(ctx.Int(32, 1)))
	notTaken.Append(ir.NewReturn(ctx.Int(32, 0)))

	changed := (SCCP{}).Apply(fn)
	require.True(t, changed)

	br, ok := fn.Entry().Terminator().(*ir.Branch)
	require.True(t, ok)
	c, ok := br.Cond().(*ir.IntConst)
	require.True(t, ok, "branch condition should have folded to a constant")
	assert.Equal(t, uint64(1), c.Val)
}
