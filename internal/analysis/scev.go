package analysis

import "scathago/internal/ir"

// SCEVKind discriminates the scalar-evolution lattice: a value is
// either an exact compile-time Constant, an unanalyzable Unknown (whose
// ValueRef is always the zero ValueRef, see refOf), or an
// affine/polynomial recurrence across one enclosing loop.
type SCEVKind uint8

const (
	SCEVConstant SCEVKind = iota
	SCEVUnknown
	SCEVAddRec
	SCEVMulRec
)

// SCEV is one node of the scalar-evolution lattice.
type SCEV struct {
	Kind SCEVKind

	ConstVal uint64 // valid when Kind == SCEVConstant

	Unknown ir.ValueRef // valid when Kind == SCEVUnknown

	// AddRec/MulRec describe the value on iteration n of the loop headed
	// by Loop: Start + n*Step for SCEVAddRec, Start * Step^n for
	// SCEVMulRec.
	Start *SCEV
	Step  *SCEV
	Loop  *Loop
}

func Const(v uint64) *SCEV { return &SCEV{Kind: SCEVConstant, ConstVal: v} }

func UnknownOf(ctx *ir.Context, v ir.Value) *SCEV {
	return &SCEV{Kind: SCEVUnknown, Unknown: refOf(ctx, v)}
}

// refOf returns the ValueRef stored in an SCEVUnknown node. It returns
// the zero ValueRef for every v, registered or not, so that ref never
// resolves: an SCEVUnknown node does not keep a back-reference to the
// value that defeated analysis.
func refOf(ctx *ir.Context, v ir.Value) ir.ValueRef {
	return ir.ValueRef{}
}

// AnalyzeLoopInductionVars computes the SCEV of every phi in loop's
// header that fits the add-recurrence shape: two incoming values, one a
// Start entering from outside the loop, the other the phi's own value
// plus a loop-invariant Step computed inside the loop.
func AnalyzeLoopInductionVars(ctx *ir.Context, loop *Loop) map[*ir.Phi]*SCEV {
	result := make(map[*ir.Phi]*SCEV)
	for _, phi := range loop.Header.Phis() {
		if s := analyzeAddRec(ctx, loop, phi); s != nil {
			result[phi] = s
		}
	}
	return result
}

func analyzeAddRec(ctx *ir.Context, loop *Loop, phi *ir.Phi) *SCEV {
	incoming := phi.Incoming()
	if len(incoming) != 2 {
		return nil
	}
	var startVal, loopVal ir.Value
	for _, pair := range incoming {
		pred, ok := pair[1].(*ir.BasicBlock)
		if !ok {
			return nil
		}
		if loop.Blocks[pred] {
			loopVal = pair[0]
		} else {
			startVal = pair[0]
		}
	}
	if startVal == nil || loopVal == nil {
		return nil
	}

	arith, ok := loopVal.(*ir.Arithmetic)
	if !ok || arith.Op != ir.OpAdd {
		return nil
	}
	var step ir.Value
	if arith.LHS() == ir.Value(phi) {
		step = arith.RHS()
	} else if arith.RHS() == ir.Value(phi) {
		step = arith.LHS()
	} else {
		return nil
	}
	if !isLoopInvariant(loop, step) {
		return nil
	}

	return &SCEV{
		Kind:  SCEVAddRec,
		Start: scevOfLeaf(ctx, startVal),
		Step:  scevOfLeaf(ctx, step),
		Loop:  loop,
	}
}

func scevOfLeaf(ctx *ir.Context, v ir.Value) *SCEV {
	if c, ok := v.(*ir.IntConst); ok {
		return Const(c.Val)
	}
	return UnknownOf(ctx, v)
}

// isLoopInvariant reports whether v is defined outside loop's blocks
// (constants and parameters are always invariant).
func isLoopInvariant(loop *Loop, v ir.Value) bool {
	inst, ok := v.(ir.Instruction)
	if !ok {
		return true
	}
	return inst.Parent() == nil || !loop.Blocks[inst.Parent()]
}
