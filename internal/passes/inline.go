package passes

import "scathago/internal/ir"

// inlineInstructionBudget bounds the callee bodies this pass will clone;
// larger callees are left as calls rather than risking a blowup in code
// size for marginal benefit.
const inlineInstructionBudget = 12

// Inliner substitutes a Call to a small, straight-line callee (a single
// basic block ending in Return, with no internal control flow) with a
// clone of that block spliced directly into the caller. It deliberately
// does not attempt to inline multi-block callees: that needs splitting
// the caller's block at the call site and rewiring the callee's internal
// edges and phis, machinery the rest of this catalog (SimplifyCFG,
// Mem2Reg) already provides more general versions of, so growing this
// pass to duplicate it isn't worth the risk of getting edge rewiring
// wrong in two places.
type Inliner struct{}

func (Inliner) Name() string        { return "inline" }
func (Inliner) Description() string { return "inlines small straight-line callees at their call sites" }

// Apply exists to satisfy Pass; the manager always dispatches to
// ApplyModule for a ModulePass, since inlining needs to see every
// function in the module, not just the one it's rewriting.
func (inl Inliner) Apply(fn *ir.Function) bool { return false }

func (inl Inliner) ApplyModule(m *ir.Module) bool {
	changed := false
	for _, fn := range m.Functions {
		for _, bb := range fn.Blocks {
			for _, inst := range append([]ir.Instruction(nil), bb.Instructions()...) {
				call, ok := inst.(*ir.Call)
				if !ok {
					continue
				}
				callee, ok := call.Callee().(*ir.Function)
				if !ok || callee == fn || !isInlineCandidate(callee) {
					continue
				}
				inlineCall(bb, call, callee)
				changed = true
			}
		}
	}
	return changed
}

func isInlineCandidate(callee *ir.Function) bool {
	if len(callee.Blocks) != 1 {
		return false
	}
	body := callee.Entry().Instructions()
	if len(body) == 0 || len(body) > inlineInstructionBudget {
		return false
	}
	for _, inst := range body {
		if call, ok := inst.(*ir.Call); ok && call.Callee() == ir.Value(callee) {
			return false // no self-recursion
		}
	}
	return true
}

// inlineCall clones callee's single block's non-terminator instructions
// into bb in place of call, remapping parameters to the call's actual
// arguments, then rewrites every use of the call's result to the cloned
// value of the callee's Return operand.
func inlineCall(bb *ir.BasicBlock, call *ir.Call, callee *ir.Function) {
	valueMap := make(map[ir.Value]ir.Value)
	for i, param := range callee.Params {
		valueMap[param] = call.Args()[i]
	}

	body := callee.Entry().Instructions()
	var clones []ir.Instruction
	var retVal ir.Value
	for _, inst := range body {
		if ret, ok := inst.(*ir.Return); ok {
			if ret.Val() != nil {
				retVal = remapValue(valueMap, ret.Val())
			}
			continue
		}
		clone := cloneInstruction(valueMap, inst)
		valueMap[ir.Value(inst)] = ir.Value(clone)
		clones = append(clones, clone)
	}

	insertInsteadOf(bb, call, clones)
	if retVal != nil {
		call.ReplaceAllUsesWith(retVal)
	}
	ir.DetachInstruction(call)
	bb.Remove(call)
}

func remapValue(valueMap map[ir.Value]ir.Value, v ir.Value) ir.Value {
	if mapped, ok := valueMap[v]; ok {
		return mapped
	}
	return v
}

// insertInsteadOf splices replacements into bb at call's position.
func insertInsteadOf(bb *ir.BasicBlock, call ir.Instruction, replacements []ir.Instruction) {
	bb.ReplaceInstruction(call, replacements)
}

func cloneInstruction(valueMap map[ir.Value]ir.Value, inst ir.Instruction) ir.Instruction {
	name := "inl." + inst.Name()
	switch t := inst.(type) {
	case *ir.Alloca:
		return ir.NewAlloca(name, t.AllocatedType)
	case *ir.Load:
		return ir.NewLoad(name, remapValue(valueMap, t.Ptr()), t.LoadedType)
	case *ir.Store:
		return ir.NewStore(remapValue(valueMap, t.Ptr()), remapValue(valueMap, t.Val()), t.StoredType)
	case *ir.GetElementPointer:
		indices := make([]ir.Value, len(t.Indices()))
		for i, idx := range t.Indices() {
			indices[i] = remapValue(valueMap, idx)
		}
		return ir.NewGetElementPointer(name, remapValue(valueMap, t.Base()), t.BaseType, indices...)
	case *ir.Arithmetic:
		return ir.NewArithmetic(name, t.Op, remapValue(valueMap, t.LHS()), remapValue(valueMap, t.RHS()))
	case *ir.UnaryArithmetic:
		return ir.NewUnaryArithmetic(name, t.Op, remapValue(valueMap, t.X()))
	case *ir.Compare:
		return ir.NewCompare(name, t.Pred, remapValue(valueMap, t.LHS()), remapValue(valueMap, t.RHS()))
	case *ir.ConversionInst:
		return ir.NewConversionInst(name, t.Op, remapValue(valueMap, t.X()), t.Target)
	case *ir.InsertValue:
		return ir.NewInsertValue(name, remapValue(valueMap, t.Agg()), remapValue(valueMap, t.Elem()), t.AggType, t.Index)
	case *ir.ExtractValue:
		return ir.NewExtractValue(name, remapValue(valueMap, t.Agg()), t.ElemType, t.Index)
	case *ir.Select:
		return ir.NewSelect(name, remapValue(valueMap, t.Cond()), remapValue(valueMap, t.IfTrue()), remapValue(valueMap, t.IfFalse()))
	case *ir.Call:
		args := make([]ir.Value, len(t.Args()))
		for i, a := range t.Args() {
			args[i] = remapValue(valueMap, a)
		}
		return ir.NewCall(name, remapValue(valueMap, t.Callee()), t.ResultType, args...)
	default:
		panic("inline: unsupported instruction kind in straight-line callee body")
	}
}
