package codegen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scathago/internal/ir"
	"scathago/internal/irtext"
)

func TestRegisterDescriptorFoldsConstants(t *testing.T) {
	ctx := ir.NewContext()
	rd := NewRegisterDescriptor()

	op := rd.Resolve(ctx.Int(32, 7))
	assert.Equal(t, OperandImmediate, op.Kind)
	assert.Equal(t, uint64(7), op.Imm.Bits)
}

func TestRegisterDescriptorAssignsStableSlots(t *testing.T) {
	ctx := ir.NewContext()
	rd := NewRegisterDescriptor()

	a := ir.NewParameter("a", ctx.Integral(32), 0)
	first := rd.Resolve(a)
	second := rd.Resolve(a)
	assert.Equal(t, OperandRegister, first.Kind)
	assert.Equal(t, first.Reg, second.Reg)

	b := ir.NewParameter("b", ctx.Integral(32), 1)
	third := rd.Resolve(b)
	assert.NotEqual(t, first.Reg, third.Reg)
}

func TestArithOpcodeSelection(t *testing.T) {
	op, ok := ArithOpcode(ir.OpSDiv)
	require.True(t, ok)
	assert.Equal(t, OpIDiv, op)

	op, ok = ArithOpcode(ir.OpUDiv)
	require.True(t, ok)
	assert.Equal(t, OpDiv, op)

	_, ok = ArithOpcode(ir.ArithOp(255))
	assert.False(t, ok)
}

func TestCompareAndJumpOpcodeSelection(t *testing.T) {
	assert.Equal(t, OpScmp, CompareOpcode(ir.PredSlt))
	assert.Equal(t, OpUcmp, CompareOpcode(ir.PredUlt))
	assert.Equal(t, OpFcmp, CompareOpcode(ir.PredOlt))

	assert.Equal(t, OpJl, CondJumpOpcode(ir.PredSlt))
	assert.Equal(t, OpSetl, SetOpcode(ir.PredSlt))
}

func TestForeignFunctionDescriptorPack(t *testing.T) {
	d := ForeignFunctionDescriptor{Slot: 3, Index: 5}
	packed := d.Pack()
	assert.Equal(t, uint32(3), packed&0x7FF)
	assert.Equal(t, uint32(5), (packed>>11)&0x1FFFFF)
}

// buildAbsModule mirrors irtext's sample: a branchy function with a phi
// merging a negated and a passthrough value, exercising phi resolution,
// critical-edge splitting, and compare/branch fusion in one pass.
func buildAbsModule(ctx *ir.Context) *ir.Module {
	m := ir.NewModule("sample", ctx)
	i32 := ctx.Integral(32)

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

func TestEmitModuleAbs(t *testing.T) {
	ctx := ir.NewContext()
	m := buildAbsModule(ctx)

	prog := EmitModule(m)
	require.NotEmpty(t, prog.Elements)

	var sawEnterFn, sawRet, sawEndOfProgram bool
	for _, e := range prog.Elements {
		switch v := e.(type) {
		case InstructionElement:
			if v.Op == OpEnterFn {
				sawEnterFn = true
			}
			if v.Op == OpRet {
				sawRet = true
			}
		case EndOfProgramElement:
			sawEndOfProgram = true
		}
	}
	assert.True(t, sawEnterFn, "expected an enterFn prologue")
	assert.True(t, sawRet, "expected a ret terminator")
	assert.True(t, sawEndOfProgram, "expected a trailing end-of-program sentinel")

	assert.Contains(t, prog.Disassemble(), "abs:")
}

// TestEmitModuleFromParsedText exercises the whole text->IR->bytecode
// path: parse a hand-written function, emit it, and check the compare
// in its branch fused directly into a conditional jump rather than
// materializing a boolean register first.
func TestEmitModuleFromParsedText(t *testing.T) {
	src := `module cond
func i32 @pick(i32 %a, i32 %b) {
%entry:
  %c = cmp slt %a, %b
  branch %c, %lt, %ge
%lt:
  return %a
%ge:
  return %b
}
`
	ctx := ir.NewContext()
	m, err := irtext.Parse(ctx, src)
	require.NoError(t, err)

	prog := EmitModule(m)

	var sawFusedJump bool
	for _, e := range prog.Elements {
		if inst, ok := e.(InstructionElement); ok && inst.Op == OpJl {
			sawFusedJump = true
		}
	}
	assert.True(t, sawFusedJump, "expected the icmp_slt/branch pair to fuse into a jl")
}

func TestCriticalEdgeSplitInsertsRelayBlock(t *testing.T) {
	ctx := ir.NewContext()
	i32 := ctx.Integral(32)

	fn := ir.NewFunction("f", i32, nil, ir.LinkageExported)
	a := ir.NewBasicBlock("a")
	b := ir.NewBasicBlock("b")
	shared := ir.NewBasicBlock("shared")
	fn.AddBlock(a)
	fn.AddBlock(b)
	fn.AddBlock(shared)

	cond := ir.NewCompare("c", ir.PredEq, ctx.Int(32, 0), ctx.Int(32, 0))
	a.Append(cond)
	a.Append(ir.NewBranch(cond, shared, b))
	b.Append(ir.NewGoto(shared))

	phi := ir.NewPhi("p", i32)
	phi.AddIncoming(ctx.Int(32, 1), a)
	phi.AddIncoming(ctx.Int(32, 2), b)
	shared.Append(phi)
	shared.Append(ir.NewReturn(phi))

	before := len(fn.Blocks)
	splitCriticalEdges(fn)
	assert.Greater(t, len(fn.Blocks), before, "expected a relay block for the critical a->shared edge")
}
