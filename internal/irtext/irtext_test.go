package irtext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scathago/internal/ir"
	"scathago/internal/issue"
)

func buildSampleModule(ctx *ir.Context) *ir.Module {
	m := ir.NewModule("sample", ctx)

	i32 := ctx.Integral(32)
	puts := ir.NewForeignFunction("puts", ctx.Void(), []ir.Type{ctx.Pointer()})
	m.AddForeignFunction(puts)

	param := ir.NewParameter("n", i32, 0)
	fn := ir.NewFunction("abs", i32, []*ir.Parameter{param}, ir.LinkageExported)
	m.AddFunction(fn)

	entry := ir.NewBasicBlock("entry")
	neg := ir.NewBasicBlock("neg")
	join := ir.NewBasicBlock("join")
	fn.AddBlock(entry)
	fn.AddBlock(neg)
	fn.AddBlock(join)

	isNeg := ir.NewCompare("isneg", ir.PredSlt, param, ctx.Int(32, 0))
	entry.Append(isNeg)
	entry.Append(ir.NewBranch(isNeg, neg, join))

	negated := ir.NewUnaryArithmetic("negated", ir.OpNeg, param)
	neg.Append(negated)
	neg.Append(ir.NewGoto(join))

	result := ir.NewPhi("result", i32)
	result.AddIncoming(negated, neg)
	result.AddIncoming(param, entry)
	join.Append(result)
	join.Append(ir.NewReturn(result))

	return m
}

func TestPrintParseRoundTrip(t *testing.T) {
	ctx := ir.NewContext()
	m := buildSampleModule(ctx)

	text := Print(m)
	require.NotEmpty(t, text)

	ctx2 := ir.NewContext()
	reparsed, err := Parse(ctx2, text)
	require.NoError(t, err)

	text2 := Print(reparsed)
	assert.Equal(t, text, text2)
}

// buildAggregateModule exercises the parts of the data model a
// scalar-only function never touches: a named struct, a fixed-length
// array field, a mutable global, a constant global, and the
// insertvalue/extractvalue pair that builds and reads a struct value.
func buildAggregateModule(ctx *ir.Context) *ir.Module {
	m := ir.NewModule("aggregates", ctx)

	i32 := ctx.Integral(32)
	coords := ctx.Array(i32, 3)
	point := ctx.NamedStruct("point", []ir.Type{i32, coords})
	m.AddStruct(point)

	origin := ir.NewGlobalVariable("origin", point, nil, false, ir.LinkageExported)
	m.AddGlobal(origin)
	limit := ir.NewGlobalVariable("limit", i32, ctx.Int(32, 100), true, ir.LinkageExported)
	m.AddGlobal(limit)

	param := ir.NewParameter("id", i32, 0)
	fn := ir.NewFunction("make_point", point, []*ir.Parameter{param}, ir.LinkageExported)
	m.AddFunction(fn)

	entry := ir.NewBasicBlock("entry")
	fn.AddBlock(entry)

	built := ir.NewInsertValue("built", ctx.Undef(point), param, point, 0)
	entry.Append(built)
	field := ir.NewExtractValue("field", built, i32, 0)
	entry.Append(field)
	entry.Append(ir.NewReturn(built))

	return m
}

func TestPrintParseRoundTripWithAggregatesAndGlobals(t *testing.T) {
	ctx := ir.NewContext()
	m := buildAggregateModule(ctx)

	text := Print(m)
	require.Contains(t, text, "struct @point")
	require.Contains(t, text, "@origin = global @point")
	require.Contains(t, text, "@limit = constant i32 100")
	require.Contains(t, text, "insertvalue")
	require.Contains(t, text, "extractvalue")

	ctx2 := ir.NewContext()
	reparsed, err := Parse(ctx2, text)
	require.NoError(t, err)

	text2 := Print(reparsed)
	assert.Equal(t, text, text2)
}

func TestParseSimpleFunction(t *testing.T) {
	src := `module test
func i32 @add(i32 %a, i32 %b) {
%entry:
  %r = add %a, %b
  return %r
}
`
	ctx := ir.NewContext()
	m, err := Parse(ctx, src)
	require.NoError(t, err)
	require.Len(t, m.Functions, 1)

	fn := m.Functions[0]
	assert.Equal(t, "add", fn.Name())
	require.Len(t, fn.Blocks, 1)
	assert.Len(t, fn.Blocks[0].Instructions(), 2)
}

func TestLintFlagsNonSnakeCaseNames(t *testing.T) {
	src := `module test
func i32 @AddTwo(i32 %a, i32 %b) {
%entry:
  %r = add %a, %b
  return %r
}
`
	ctx := ir.NewContext()
	m, err := Parse(ctx, src)
	require.NoError(t, err)

	warnings := Lint(m)
	require.Equal(t, 1, warnings.Len())
	assert.Equal(t, issue.LevelWarning, warnings.Items()[0].Level)
}

func TestLintAcceptsSnakeCaseNames(t *testing.T) {
	src := `module test
func i32 @add_two(i32 %a, i32 %b) {
%entry:
  %r = add %a, %b
  return %r
}
`
	ctx := ir.NewContext()
	m, err := Parse(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, 0, Lint(m).Len())
}

func TestParseRejectsUnknownType(t *testing.T) {
	src := `module test
func bogus @f() {
%entry:
  return void
}
`
	ctx := ir.NewContext()
	_, err := Parse(ctx, src)
	assert.Error(t, err)
}
