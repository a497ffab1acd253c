package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scathago/internal/ir"
)

// buildDiamond builds entry -> {left, right} -> join -> ret, the
// textbook fixture for dominance-frontier placement.
func buildDiamond(ctx *ir.Context) (*ir.Function, *ir.BasicBlock, *ir.BasicBlock, *ir.BasicBlock, *ir.BasicBlock) {
	i32 := ctx.Integral(32)
	fn := ir.NewFunction("f", i32, nil, ir.LinkageExported)

	entry := ir.NewBasicBlock("entry")
	left := ir.NewBasicBlock("left")
	right := ir.NewBasicBlock("right")
	join := ir.NewBasicBlock("join")
	fn.AddBlock(entry)
	fn.AddBlock(left)
	fn.AddBlock(right)
	fn.AddBlock(join)

	entry.Append(ir.NewBranch(ctx.True(), left, right))
	left.Append(ir.NewGoto(join))
	right.Append(ir.NewGoto(join))
	join.Append(ir.NewReturn(nil))

	return fn, entry, left, right, join
}

func TestDomTreeDiamond(t *testing.T) {
	ctx := ir.NewContext()
	fn, entry, left, right, join := buildDiamond(ctx)

	dt := BuildDomTree(fn)
	assert.True(t, dt.Dominates(entry, join))
	assert.True(t, dt.Dominates(entry, left))
	assert.False(t, dt.Dominates(left, right))
	assert.False(t, dt.Dominates(left, join))
	assert.Equal(t, entry, dt.IDom(join))
	assert.Nil(t, dt.IDom(entry))
}

func TestDomFrontierAtJoin(t *testing.T) {
	ctx := ir.NewContext()
	fn, _, left, right, join := buildDiamond(ctx)

	dt := BuildDomTree(fn)
	assert.Contains(t, dt.Frontier(left), join)
	assert.Contains(t, dt.Frontier(right), join)
}

func TestPostDomTreeDiamond(t *testing.T) {
	ctx := ir.NewContext()
	fn, entry, left, right, join := buildDiamond(ctx)

	pt := BuildPostDomTree(fn)
	assert.True(t, pt.PostDominates(join, left))
	assert.True(t, pt.PostDominates(join, right))
	assert.True(t, pt.PostDominates(join, entry))
	assert.False(t, pt.PostDominates(left, entry))
}

// buildSimpleLoop builds entry -> header -> {body -> header, exit}.
func buildSimpleLoop(ctx *ir.Context) (*ir.Function, *ir.BasicBlock, *ir.BasicBlock) {
	i32 := ctx.Integral(32)
	fn := ir.NewFunction("loopy", i32, nil, ir.LinkageExported)

	entry := ir.NewBasicBlock("entry")
	header := ir.NewBasicBlock("header")
	body := ir.NewBasicBlock("body")
	exit := ir.NewBasicBlock("exit")
	fn.AddBlock(entry)
	fn.AddBlock(header)
	fn.AddBlock(body)
	fn.AddBlock(exit)

	entry.Append(ir.NewGoto(header))
	header.Append(ir.NewBranch(ctx.True(), body, exit))
	body.Append(ir.NewGoto(header))
	exit.Append(ir.NewReturn(nil))

	return fn, header, body
}

func TestLoopForestFindsNaturalLoop(t *testing.T) {
	ctx := ir.NewContext()
	fn, header, body := buildSimpleLoop(ctx)

	dt := BuildDomTree(fn)
	forest := BuildLoopForest(fn, dt)

	require.Len(t, forest.Top, 1)
	loop := forest.Top[0]
	assert.Equal(t, header, loop.Header)
	assert.True(t, loop.Blocks[header])
	assert.True(t, loop.Blocks[body])
	assert.Equal(t, 1, loop.Depth())
}
