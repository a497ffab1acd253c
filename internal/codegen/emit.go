package codegen

import (
	"scathago/internal/ir"
	"scathago/internal/issue"
)

// EmitModule lowers every defined function in m to bytecode, in
// declaration order, and returns the finished Program. Foreign
// functions contribute only a descriptor-table entry; they have no
// body to emit.
func EmitModule(m *ir.Module) *Program {
	prog := &Program{BuildID: m.Ctx.BuildID, FuncLabels: make(map[uint64]string, len(m.Functions))}
	for i, ff := range m.Foreigns {
		prog.Foreigns = append(prog.Foreigns, ForeignFunctionDescriptor{
			Name:     ff.Name(),
			Index:    uint32(firstUserForeignSlot + i),
			RetType:  ff.ReturnType,
			ArgTypes: ff.ParamTypes,
		})
	}
	ids := make(map[*ir.Function]uint64, len(m.Functions))
	for i, fn := range m.Functions {
		ids[fn] = uint64(i)
		prog.FuncLabels[uint64(i)] = safeLabel(fn.Name())
	}
	for _, fn := range m.Functions {
		emitFunction(prog, fn, ids)
	}
	prog.end()
	return prog
}

// funcState threads the bits every per-instruction emitter needs:
// the function's register allocator, its own bytecode id, and the
// id table for call targets.
type funcState struct {
	fn    *ir.Function
	rd    *RegisterDescriptor
	id    uint64
	ids   map[*ir.Function]uint64
}

// emitFunction lowers one function's body. Critical edges are split
// first so every phi-resolution mov injected into a predecessor can't
// accidentally run on an edge shared with another successor; registers
// are allocated lazily as each value is first resolved, the same
// single-pass allocation the original register descriptor performs.
func emitFunction(prog *Program, fn *ir.Function, ids map[*ir.Function]uint64) {
	splitCriticalEdges(fn)

	st := &funcState{fn: fn, rd: NewRegisterDescriptor(), id: ids[fn], ids: ids}
	for _, p := range fn.Params {
		st.rd.Resolve(p)
	}

	body := &Program{}
	for blockIdx, bb := range fn.Blocks {
		body.label(Label{FunctionID: st.id, Index: blockIdx})
		for _, inst := range bb.Instructions() {
			if inst.IsTerminator() {
				emitPhiMoves(st, body, bb)
			}
			emitInstruction(st, body, inst)
		}
	}

	prog.label(Label{FunctionID: st.id, Index: FunctionEntry})
	prog.instruction(OpEnterFn)
	prog.emit(Value32Element{V: uint32(st.rd.NumUsedRegisters())})
	prog.Elements = append(prog.Elements, body.Elements...)
}

// blockLabel is the Label a jump into bb resolves to, located by bb's
// position in its owning function's block list.
func (st *funcState) blockLabel(bb *ir.BasicBlock) Label {
	for i, b := range st.fn.Blocks {
		if b == bb {
			return Label{FunctionID: st.id, Index: i}
		}
	}
	issue.Invariant(false, "codegen: jump target block is not a member of its function")
	return Label{}
}

// splitCriticalEdges inserts an empty relay block on every edge that is
// both a branch's non-exclusive arm and a successor's non-exclusive
// predecessor, so phi-resolving movs injected into a predecessor never
// leak onto a path that bypasses the phi.
func splitCriticalEdges(fn *ir.Function) {
	type edge struct {
		from *ir.BasicBlock
		to   *ir.BasicBlock
		slot int // operand index of the successor on from's Branch
	}
	var critical []edge
	for _, bb := range fn.Blocks {
		br, ok := bb.Terminator().(*ir.Branch)
		if !ok {
			continue
		}
		for slot, succ := range []*ir.BasicBlock{br.IfTrue(), br.IfFalse()} {
			if len(succ.Predecessors()) > 1 {
				critical = append(critical, edge{from: bb, to: succ, slot: slot + 1})
			}
		}
	}
	for i, e := range critical {
		relay := ir.NewBasicBlock(e.from.Name() + ".crit" + itoa(i))
		fn.AddBlock(relay)
		relay.Append(ir.NewGoto(e.to))
		br := e.from.Terminator().(*ir.Branch)
		br.SetOperand(e.slot, relay)
		for _, phi := range e.to.Phis() {
			phi.RenamePred(e.from, relay)
		}
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

// emitPhiMoves injects, immediately before bb's terminator, one mov per
// phi in each successor that has an incoming pair from bb — the
// standard out-of-SSA lowering: a phi is materialized in its own
// predecessors rather than at its own definition site.
func emitPhiMoves(st *funcState, prog *Program, bb *ir.BasicBlock) {
	for _, succ := range bb.Successors() {
		for _, phi := range succ.Phis() {
			for _, pair := range phi.Incoming() {
				if pred, ok := pair[1].(*ir.BasicBlock); ok && pred == bb {
					dst := st.rd.Resolve(phi)
					src := st.rd.Resolve(pair[0])
					prog.instruction(OpMov)
					prog.operand(dst)
					prog.operand(src)
				}
			}
		}
	}
}

func emitInstruction(st *funcState, prog *Program, inst ir.Instruction) {
	switch t := inst.(type) {
	case *ir.Phi:
		// Materialized entirely via emitPhiMoves in predecessor blocks.
		st.rd.Resolve(t)
	case *ir.Alloca:
		dst := st.rd.Resolve(t)
		prog.instruction(OpAlloca)
		prog.operand(dst)
		prog.emit(Value32Element{V: uint32(t.AllocatedType.Size())})
	case *ir.Load:
		dst := st.rd.Resolve(t)
		addr := st.rd.ResolveAddr(t.Ptr())
		prog.instruction(OpMov)
		prog.operand(dst)
		prog.emit(MemoryElement{Addr: addr})
	case *ir.Store:
		addr := st.rd.ResolveAddr(t.Ptr())
		src := st.rd.Resolve(t.Val())
		prog.instruction(OpMov)
		prog.emit(MemoryElement{Addr: addr})
		prog.operand(src)
	case *ir.GetElementPointer:
		emitGEP(st, prog, t)
	case *ir.Arithmetic:
		emitArithmetic(st, prog, t)
	case *ir.UnaryArithmetic:
		emitUnary(st, prog, t)
	case *ir.Compare:
		emitCompare(st, prog, t)
	case *ir.ConversionInst:
		dst := st.rd.Resolve(t)
		src := st.rd.Resolve(t.X())
		prog.instruction(OpMov)
		prog.operand(dst)
		prog.operand(src)
	case *ir.Select:
		emitSelect(st, prog, t)
	case *ir.Call:
		emitCall(st, prog, t)
	case *ir.Goto:
		prog.instruction(OpJmp)
		prog.label(st.blockLabel(t.Target()))
	case *ir.Branch:
		emitBranch(st, prog, t)
	case *ir.Return:
		if val := t.Val(); val != nil {
			src := st.rd.Resolve(val)
			prog.instruction(OpMov)
			prog.operand(Operand{Kind: OperandRegister, Reg: 0})
			prog.operand(src)
		}
		prog.instruction(OpRet)
	case *ir.InsertValue, *ir.ExtractValue:
		issue.Unsupported("codegen: aggregate %s reached code generation; SROA should have scalarized it first", inst.Opcode())
	default:
		issue.Unsupported("codegen: no lowering for instruction kind %s", inst.Opcode())
	}
}

func emitGEP(st *funcState, prog *Program, gep *ir.GetElementPointer) {
	offset, ok := constantGEPOffset(gep)
	if !ok {
		issue.Unsupported("codegen: gep %%%s has a non-constant index; only constant-offset addressing is implemented", gep.Name())
	}
	dst := st.rd.Resolve(gep)
	base := st.rd.Resolve(gep.Base())
	prog.instruction(OpMov)
	prog.operand(dst)
	prog.operand(base)
	if offset != 0 {
		prog.instruction(OpAdd)
		prog.operand(dst)
		prog.operand(dst)
		prog.operand(Operand{Kind: OperandImmediate, Imm: Value64{Origin: OriginUnsigned, Bits: uint64(offset)}})
	}
}

// constantGEPOffset computes the static byte offset of a
// GetElementPointer whose indices are all integer constants, walking
// BaseType's aggregate layout the same way SROA's member-type lookup
// does. A non-constant index (a runtime array subscript) isn't folded
// here; full addressing-mode selection with a register-valued index is
// left for a future instruction-selection pass.
func constantGEPOffset(gep *ir.GetElementPointer) (int, bool) {
	offset := 0
	cur := gep.BaseType
	for _, idx := range gep.Indices() {
		ic, ok := idx.(*ir.IntConst)
		if !ok {
			return 0, false
		}
		i := int(ic.Val)
		switch t := cur.(type) {
		case *ir.ArrayType:
			offset += i * t.Elem.Size()
			cur = t.Elem
		case *ir.StructType:
			offset += t.MemberOffset(i)
			cur = t.Elems[i]
		default:
			return 0, false
		}
	}
	return offset, true
}

func emitArithmetic(st *funcState, prog *Program, a *ir.Arithmetic) {
	op, ok := ArithOpcode(a.Op)
	if !ok {
		issue.Unsupported("codegen: no opcode for arithmetic op %s", a.Op)
	}
	dst := st.rd.Resolve(a)
	lhs := st.rd.Resolve(a.LHS())
	rhs := st.rd.Resolve(a.RHS())
	prog.instruction(op)
	prog.operand(dst)
	prog.operand(lhs)
	prog.operand(rhs)
}

func emitUnary(st *funcState, prog *Program, u *ir.UnaryArithmetic) {
	dst := st.rd.Resolve(u)
	x := st.rd.Resolve(u.X())
	bits := 64
	if it, ok := u.X().Type().(*ir.IntegralType); ok {
		bits = it.Bits
	}
	switch u.Op {
	case ir.OpNeg:
		prog.instruction(OpSub)
		prog.operand(dst)
		prog.operand(Operand{Kind: OperandImmediate, Imm: Value64{Origin: OriginUnsigned, Bits: 0}})
		prog.operand(x)
	case ir.OpFNeg:
		prog.instruction(OpFSub)
		prog.operand(dst)
		prog.operand(Operand{Kind: OperandImmediate, Imm: Value64{Origin: OriginFloat, Bits: 0}})
		prog.operand(x)
	case ir.OpNot:
		mask := uint64(1)<<uint(bits) - 1
		if bits >= 64 {
			mask = ^uint64(0)
		}
		prog.instruction(OpXor)
		prog.operand(dst)
		prog.operand(x)
		prog.operand(Operand{Kind: OperandImmediate, Imm: Value64{Origin: OriginUnsigned, Bits: mask}})
	}
}

func emitCompare(st *funcState, prog *Program, c *ir.Compare) {
	// A compare read only as branch conditions is re-emitted by
	// emitBranch right before its conditional jump, so it gets no
	// boolean register of its own.
	onlyBranches := len(c.Users()) > 0
	for _, use := range c.Users() {
		if _, ok := use.User.(*ir.Branch); !ok || use.Slot != 0 {
			onlyBranches = false
		}
	}
	if onlyBranches {
		return
	}
	lhs := st.rd.Resolve(c.LHS())
	rhs := st.rd.Resolve(c.RHS())
	prog.instruction(CompareOpcode(c.Pred))
	prog.operand(lhs)
	prog.operand(rhs)
	dst := st.rd.Resolve(c)
	prog.instruction(SetOpcode(c.Pred))
	prog.operand(dst)
}

func emitSelect(st *funcState, prog *Program, s *ir.Select) {
	dst := st.rd.Resolve(s)
	ifTrue := st.rd.Resolve(s.IfTrue())
	ifFalse := st.rd.Resolve(s.IfFalse())
	cond := st.rd.Resolve(s.Cond())
	prog.instruction(OpMov)
	prog.operand(dst)
	prog.operand(ifFalse)
	prog.instruction(OpUcmp)
	prog.operand(cond)
	prog.operand(Operand{Kind: OperandImmediate, Imm: Value64{Origin: OriginUnsigned, Bits: 0}})
	prog.instruction(OpJe)
	prog.emit(Value8Element{V: 2}) // skip the next instruction (the true-arm mov) when cond == 0
	prog.instruction(OpMov)
	prog.operand(dst)
	prog.operand(ifTrue)
}

func emitCall(st *funcState, prog *Program, c *ir.Call) {
	base := st.rd.AllocateAutomatic(len(c.Args()))
	for i, arg := range c.Args() {
		src := st.rd.Resolve(arg)
		prog.instruction(OpMov)
		prog.operand(Operand{Kind: OperandRegister, Reg: RegisterIndex(int(base) + i)})
		prog.operand(src)
	}
	switch callee := c.Callee().(type) {
	case *ir.ForeignFunction:
		prog.instruction(OpCallExt)
		prog.emit(Value32Element{V: uint32(0)}) // patched to Foreigns[] index at link time
	case *ir.Function:
		prog.instruction(OpCall)
		prog.label(Label{FunctionID: st.ids[callee], Index: FunctionEntry})
	default:
		issue.Unsupported("codegen: call through an indirect value is not implemented")
	}
	if _, isVoid := c.ResultType.(ir.VoidType); !isVoid {
		dst := st.rd.Resolve(c)
		prog.instruction(OpMov)
		prog.operand(dst)
		prog.operand(Operand{Kind: OperandRegister, Reg: 0})
	}
}

func emitBranch(st *funcState, prog *Program, br *ir.Branch) {
	if cmp, ok := br.Cond().(*ir.Compare); ok {
		lhs := st.rd.Resolve(cmp.LHS())
		rhs := st.rd.Resolve(cmp.RHS())
		prog.instruction(CompareOpcode(cmp.Pred))
		prog.operand(lhs)
		prog.operand(rhs)
		prog.instruction(CondJumpOpcode(cmp.Pred))
		prog.label(st.blockLabel(br.IfTrue()))
		prog.instruction(OpJmp)
		prog.label(st.blockLabel(br.IfFalse()))
		return
	}
	cond := st.rd.Resolve(br.Cond())
	prog.instruction(OpUcmp)
	prog.operand(cond)
	prog.operand(Operand{Kind: OperandImmediate, Imm: Value64{Origin: OriginUnsigned, Bits: 0}})
	prog.instruction(OpJne)
	prog.label(st.blockLabel(br.IfTrue()))
	prog.instruction(OpJmp)
	prog.label(st.blockLabel(br.IfFalse()))
}
