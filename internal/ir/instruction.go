package ir

import (
	"fmt"
	"strings"
)

// Instruction is any Value produced inside a BasicBlock. Its operands are
// tracked Use edges; SetOperand is how ReplaceAllUsesWith rewrites a
// user in place. Exactly one instruction per block — the last — may answer
// IsTerminator true.
type Instruction interface {
	Value
	Parent() *BasicBlock
	setParent(*BasicBlock)
	Operands() []Value
	SetOperand(i int, v Value)
	IsTerminator() bool
	// Opcode is a short stable mnemonic used by the textual printer and by
	// instruction-selection's (family, operandKind) dispatch table.
	Opcode() string
}

// instBase implements the bookkeeping shared by every instruction: name,
// user list, parent block, and the Use-edge operand array. Concrete
// instructions embed it and call init to wire their operand slots.
type instBase struct {
	valueBase
	parent *BasicBlock
	ops    []Use
}

func (b *instBase) Parent() *BasicBlock      { return b.parent }
func (b *instBase) setParent(bb *BasicBlock) { b.parent = bb }
func (b *instBase) IsTerminator() bool       { return false }

func (b *instBase) Operands() []Value {
	vs := make([]Value, len(b.ops))
	for i := range b.ops {
		vs[i] = b.ops[i].Value
	}
	return vs
}

func (b *instBase) SetOperand(i int, v Value) {
	old := b.ops[i].Value
	if old != nil {
		old.dropUse(&b.ops[i])
	}
	b.ops[i].Value = v
	if v != nil {
		v.addUse(&b.ops[i])
	}
}

// init allocates self's operand slots and wires each operand's use-edge
// back to self. self must be the concrete instruction embedding b.
func (b *instBase) init(self Instruction, operands ...Value) {
	b.ops = make([]Use, len(operands))
	for i, v := range operands {
		b.ops[i] = Use{Value: v, User: self, Slot: i}
		if v != nil {
			v.addUse(&b.ops[i])
		}
	}
}

func (b *instBase) operand(i int) Value { return b.ops[i].Value }

// --- Alloca ---------------------------------------------------------------

// Alloca reserves a stack slot of AllocatedType and yields its address.
type Alloca struct {
	instBase
	AllocatedType Type
}

func NewAlloca(name string, allocatedType Type) *Alloca {
	a := &Alloca{AllocatedType: allocatedType}
	a.name = name
	a.init(a)
	return a
}

func (a *Alloca) ValueKind() ValueKind { return ValInstruction }
func (a *Alloca) Type() Type           { return PointerType{} }
func (a *Alloca) Opcode() string       { return "alloca" }
func (a *Alloca) ReplaceAllUsesWith(v Value) {
	replaceAllUsesWith(a, &a.valueBase, v)
}
func (a *Alloca) String() string {
	return fmt.Sprintf("%%%s = alloca %s", a.name, a.AllocatedType)
}

// --- Load / Store -----------------------------------------------------------

// Load reads LoadedType through a pointer operand.
type Load struct {
	instBase
	LoadedType Type
}

func NewLoad(name string, ptr Value, loadedType Type) *Load {
	l := &Load{LoadedType: loadedType}
	l.name = name
	l.init(l, ptr)
	return l
}

func (l *Load) ValueKind() ValueKind      { return ValInstruction }
func (l *Load) Type() Type                { return l.LoadedType }
func (l *Load) Opcode() string            { return "load" }
func (l *Load) Ptr() Value                { return l.operand(0) }
func (l *Load) ReplaceAllUsesWith(v Value) { replaceAllUsesWith(l, &l.valueBase, v) }
func (l *Load) String() string {
	return fmt.Sprintf("%%%s = load %s, ptr %s", l.name, l.LoadedType, nameOf(l.Ptr()))
}

// Store writes Val through a pointer operand; it has no result.
type Store struct {
	instBase
	StoredType Type
}

func NewStore(ptr, val Value, storedType Type) *Store {
	s := &Store{StoredType: storedType}
	s.init(s, ptr, val)
	return s
}

func (s *Store) ValueKind() ValueKind      { return ValInstruction }
func (s *Store) Type() Type                { return VoidType{} }
func (s *Store) Opcode() string            { return "store" }
func (s *Store) Ptr() Value                { return s.operand(0) }
func (s *Store) Val() Value                { return s.operand(1) }
func (s *Store) ReplaceAllUsesWith(v Value) { replaceAllUsesWith(s, &s.valueBase, v) }
func (s *Store) String() string {
	return fmt.Sprintf("store %s %s, ptr %s", s.StoredType, nameOf(s.Val()), nameOf(s.Ptr()))
}

// --- GetElementPointer -------------------------------------------------------

// GetElementPointer computes an address offset from Base by walking
// BaseType's aggregate structure through Indices, generalized to
// arbitrary struct/array nesting.
type GetElementPointer struct {
	instBase
	BaseType Type // the type Base points to
}

func NewGetElementPointer(name string, base Value, baseType Type, indices ...Value) *GetElementPointer {
	g := &GetElementPointer{BaseType: baseType}
	g.name = name
	operands := append([]Value{base}, indices...)
	g.init(g, operands...)
	return g
}

func (g *GetElementPointer) ValueKind() ValueKind { return ValInstruction }
func (g *GetElementPointer) Type() Type           { return PointerType{} }
func (g *GetElementPointer) Opcode() string        { return "gep" }
func (g *GetElementPointer) Base() Value           { return g.operand(0) }
func (g *GetElementPointer) Indices() []Value      { return g.Operands()[1:] }
func (g *GetElementPointer) ReplaceAllUsesWith(v Value) {
	replaceAllUsesWith(g, &g.valueBase, v)
}
func (g *GetElementPointer) String() string {
	idx := make([]string, len(g.Indices()))
	for i, v := range g.Indices() {
		idx[i] = nameOf(v)
	}
	return fmt.Sprintf("%%%s = gep %s, ptr %s, [%s]", g.name, g.BaseType, nameOf(g.Base()), strings.Join(idx, ", "))
}

// --- Arithmetic / UnaryArithmetic / Compare ---------------------------------

type ArithOp uint8

const (
	OpAdd ArithOp = iota
	OpSub
	OpMul
	OpSDiv
	OpUDiv
	OpSRem
	OpURem
	OpAnd
	OpOr
	OpXor
	OpShl
	OpLShr
	OpAShr
	OpFAdd
	OpFSub
	OpFMul
	OpFDiv
)

var arithMnemonic = map[ArithOp]string{
	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpSDiv: "sdiv", OpUDiv: "udiv",
	OpSRem: "srem", OpURem: "urem", OpAnd: "and", OpOr: "or", OpXor: "xor",
	OpShl: "shl", OpLShr: "lshr", OpAShr: "ashr",
	OpFAdd: "fadd", OpFSub: "fsub", OpFMul: "fmul", OpFDiv: "fdiv",
}

func (o ArithOp) String() string { return arithMnemonic[o] }

// Arithmetic is a binary integral or floating-point operation.
type Arithmetic struct {
	instBase
	Op     ArithOp
	Result Type
}

func NewArithmetic(name string, op ArithOp, lhs, rhs Value) *Arithmetic {
	a := &Arithmetic{Op: op, Result: lhs.Type()}
	a.name = name
	a.init(a, lhs, rhs)
	return a
}

func (a *Arithmetic) ValueKind() ValueKind { return ValInstruction }
func (a *Arithmetic) Type() Type           { return a.Result }
func (a *Arithmetic) Opcode() string       { return a.Op.String() }
func (a *Arithmetic) LHS() Value           { return a.operand(0) }
func (a *Arithmetic) RHS() Value           { return a.operand(1) }
func (a *Arithmetic) ReplaceAllUsesWith(v Value) {
	replaceAllUsesWith(a, &a.valueBase, v)
}
func (a *Arithmetic) String() string {
	return fmt.Sprintf("%%%s = %s %s, %s", a.name, a.Op, nameOf(a.LHS()), nameOf(a.RHS()))
}

type UnaryOp uint8

const (
	OpNeg UnaryOp = iota
	OpFNeg
	OpNot
)

var unaryMnemonic = map[UnaryOp]string{OpNeg: "neg", OpFNeg: "fneg", OpNot: "not"}

func (o UnaryOp) String() string { return unaryMnemonic[o] }

// UnaryArithmetic is a single-operand integral or floating-point operation.
type UnaryArithmetic struct {
	instBase
	Op     UnaryOp
	Result Type
}

func NewUnaryArithmetic(name string, op UnaryOp, x Value) *UnaryArithmetic {
	u := &UnaryArithmetic{Op: op, Result: x.Type()}
	u.name = name
	u.init(u, x)
	return u
}

func (u *UnaryArithmetic) ValueKind() ValueKind { return ValInstruction }
func (u *UnaryArithmetic) Type() Type           { return u.Result }
func (u *UnaryArithmetic) Opcode() string       { return u.Op.String() }
func (u *UnaryArithmetic) X() Value             { return u.operand(0) }
func (u *UnaryArithmetic) ReplaceAllUsesWith(v Value) {
	replaceAllUsesWith(u, &u.valueBase, v)
}
func (u *UnaryArithmetic) String() string {
	return fmt.Sprintf("%%%s = %s %s", u.name, u.Op, nameOf(u.X()))
}

type ComparePred uint8

const (
	PredEq ComparePred = iota
	PredNe
	PredSlt
	PredSgt
	PredSle
	PredSge
	PredUlt
	PredUgt
	PredUle
	PredUge
	PredOeq
	PredOne
	PredOlt
	PredOgt
	PredOle
	PredOge
)

var predMnemonic = map[ComparePred]string{
	PredEq: "eq", PredNe: "ne", PredSlt: "slt", PredSgt: "sgt", PredSle: "sle", PredSge: "sge",
	PredUlt: "ult", PredUgt: "ugt", PredUle: "ule", PredUge: "uge",
	PredOeq: "oeq", PredOne: "one", PredOlt: "olt", PredOgt: "ogt", PredOle: "ole", PredOge: "oge",
}

func (p ComparePred) String() string { return predMnemonic[p] }

// Compare yields an Integral(1) result from a predicate applied to two
// like-typed operands.
type Compare struct {
	instBase
	Pred ComparePred
}

func NewCompare(name string, pred ComparePred, lhs, rhs Value) *Compare {
	c := &Compare{Pred: pred}
	c.name = name
	c.init(c, lhs, rhs)
	return c
}

func (c *Compare) ValueKind() ValueKind { return ValInstruction }
func (c *Compare) Type() Type           { return &IntegralType{Bits: 1} }
func (c *Compare) Opcode() string       { return "cmp" }
func (c *Compare) LHS() Value           { return c.operand(0) }
func (c *Compare) RHS() Value           { return c.operand(1) }
func (c *Compare) ReplaceAllUsesWith(v Value) {
	replaceAllUsesWith(c, &c.valueBase, v)
}
func (c *Compare) String() string {
	return fmt.Sprintf("%%%s = cmp %s %s, %s", c.name, c.Pred, nameOf(c.LHS()), nameOf(c.RHS()))
}

// --- ConversionInst ----------------------------------------------------------

type ConvOp uint8

const (
	ConvTrunc ConvOp = iota
	ConvZExt
	ConvSExt
	ConvFPTrunc
	ConvFPExt
	ConvFPToSI
	ConvFPToUI
	ConvSIToFP
	ConvUIToFP
	ConvBitcast
	ConvPtrToInt
	ConvIntToPtr
)

var convMnemonic = map[ConvOp]string{
	ConvTrunc: "trunc", ConvZExt: "zext", ConvSExt: "sext",
	ConvFPTrunc: "fptrunc", ConvFPExt: "fpext",
	ConvFPToSI: "fptosi", ConvFPToUI: "fptoui",
	ConvSIToFP: "sitofp", ConvUIToFP: "uitofp",
	ConvBitcast: "bitcast", ConvPtrToInt: "ptrtoint", ConvIntToPtr: "inttoptr",
}

func (o ConvOp) String() string { return convMnemonic[o] }

// ConversionInst changes a value's representation without changing its
// meaning: truncation/extension, float/int casts, and bit-preserving casts.
type ConversionInst struct {
	instBase
	Op     ConvOp
	Target Type
}

func NewConversionInst(name string, op ConvOp, x Value, target Type) *ConversionInst {
	c := &ConversionInst{Op: op, Target: target}
	c.name = name
	c.init(c, x)
	return c
}

func (c *ConversionInst) ValueKind() ValueKind { return ValInstruction }
func (c *ConversionInst) Type() Type           { return c.Target }
func (c *ConversionInst) Opcode() string       { return c.Op.String() }
func (c *ConversionInst) X() Value             { return c.operand(0) }
func (c *ConversionInst) ReplaceAllUsesWith(v Value) {
	replaceAllUsesWith(c, &c.valueBase, v)
}
func (c *ConversionInst) String() string {
	return fmt.Sprintf("%%%s = %s %s to %s", c.name, c.Op, nameOf(c.X()), c.Target)
}

// --- InsertValue / ExtractValue ----------------------------------------------

// InsertValue returns a copy of Agg with member Index replaced by Elem.
type InsertValue struct {
	instBase
	AggType Type
	Index   int
}

func NewInsertValue(name string, agg, elem Value, aggType Type, index int) *InsertValue {
	iv := &InsertValue{AggType: aggType, Index: index}
	iv.name = name
	iv.init(iv, agg, elem)
	return iv
}

func (iv *InsertValue) ValueKind() ValueKind { return ValInstruction }
func (iv *InsertValue) Type() Type           { return iv.AggType }
func (iv *InsertValue) Opcode() string       { return "insertvalue" }
func (iv *InsertValue) Agg() Value           { return iv.operand(0) }
func (iv *InsertValue) Elem() Value          { return iv.operand(1) }
func (iv *InsertValue) ReplaceAllUsesWith(v Value) {
	replaceAllUsesWith(iv, &iv.valueBase, v)
}
func (iv *InsertValue) String() string {
	return fmt.Sprintf("%%%s = insertvalue %s %s, %s, %d", iv.name, iv.AggType, nameOf(iv.Agg()), nameOf(iv.Elem()), iv.Index)
}

// ExtractValue reads member Index out of Agg.
type ExtractValue struct {
	instBase
	ElemType Type
	Index    int
}

func NewExtractValue(name string, agg Value, elemType Type, index int) *ExtractValue {
	ev := &ExtractValue{ElemType: elemType, Index: index}
	ev.name = name
	ev.init(ev, agg)
	return ev
}

func (ev *ExtractValue) ValueKind() ValueKind { return ValInstruction }
func (ev *ExtractValue) Type() Type           { return ev.ElemType }
func (ev *ExtractValue) Opcode() string       { return "extractvalue" }
func (ev *ExtractValue) Agg() Value           { return ev.operand(0) }
func (ev *ExtractValue) ReplaceAllUsesWith(v Value) {
	replaceAllUsesWith(ev, &ev.valueBase, v)
}
func (ev *ExtractValue) String() string {
	return fmt.Sprintf("%%%s = extractvalue %s, %d", ev.name, nameOf(ev.Agg()), ev.Index)
}

// --- Terminators: Goto / Branch / Return -------------------------------------

// Goto is an unconditional jump; its target is tracked as a Use edge so
// block-merging passes can redirect it via ReplaceAllUsesWith on the block.
type Goto struct {
	instBase
}

func NewGoto(target *BasicBlock) *Goto {
	g := &Goto{}
	g.init(g, target)
	return g
}

func (g *Goto) ValueKind() ValueKind      { return ValInstruction }
func (g *Goto) Type() Type                { return VoidType{} }
func (g *Goto) Opcode() string            { return "goto" }
func (g *Goto) IsTerminator() bool        { return true }
func (g *Goto) Target() *BasicBlock       { return g.operand(0).(*BasicBlock) }
func (g *Goto) ReplaceAllUsesWith(v Value) { replaceAllUsesWith(g, &g.valueBase, v) }
func (g *Goto) String() string             { return fmt.Sprintf("goto label %%%s", g.Target().Name()) }

// Branch is a conditional two-way jump.
type Branch struct {
	instBase
}

func NewBranch(cond Value, ifTrue, ifFalse *BasicBlock) *Branch {
	b := &Branch{}
	b.init(b, cond, ifTrue, ifFalse)
	return b
}

func (b *Branch) ValueKind() ValueKind { return ValInstruction }
func (b *Branch) Type() Type           { return VoidType{} }
func (b *Branch) Opcode() string       { return "branch" }
func (b *Branch) IsTerminator() bool   { return true }
func (b *Branch) Cond() Value          { return b.operand(0) }
func (b *Branch) IfTrue() *BasicBlock  { return b.operand(1).(*BasicBlock) }
func (b *Branch) IfFalse() *BasicBlock { return b.operand(2).(*BasicBlock) }
func (b *Branch) ReplaceAllUsesWith(v Value) {
	replaceAllUsesWith(b, &b.valueBase, v)
}
func (b *Branch) String() string {
	return fmt.Sprintf("branch %s, label %%%s, label %%%s", nameOf(b.Cond()), b.IfTrue().Name(), b.IfFalse().Name())
}

// Return ends a function, optionally yielding a value.
type Return struct {
	instBase
}

func NewReturn(val Value) *Return {
	r := &Return{}
	if val != nil {
		r.init(r, val)
	} else {
		r.init(r)
	}
	return r
}

func (r *Return) ValueKind() ValueKind { return ValInstruction }
func (r *Return) Type() Type           { return VoidType{} }
func (r *Return) Opcode() string       { return "return" }
func (r *Return) IsTerminator() bool   { return true }
func (r *Return) Val() Value {
	if len(r.ops) == 0 {
		return nil
	}
	return r.operand(0)
}
func (r *Return) ReplaceAllUsesWith(v Value) { replaceAllUsesWith(r, &r.valueBase, v) }
func (r *Return) String() string {
	if r.Val() == nil {
		return "return"
	}
	return fmt.Sprintf("return %s", nameOf(r.Val()))
}

// --- Call --------------------------------------------------------------------

// Call invokes Callee (a Function, ForeignFunction, or function-typed
// value) with Args, yielding ResultType.
type Call struct {
	instBase
	ResultType Type
}

func NewCall(name string, callee Value, resultType Type, args ...Value) *Call {
	c := &Call{ResultType: resultType}
	c.name = name
	operands := append([]Value{callee}, args...)
	c.init(c, operands...)
	return c
}

func (c *Call) ValueKind() ValueKind { return ValInstruction }
func (c *Call) Type() Type           { return c.ResultType }
func (c *Call) Opcode() string       { return "call" }
func (c *Call) Callee() Value        { return c.operand(0) }
func (c *Call) Args() []Value        { return c.Operands()[1:] }
func (c *Call) ReplaceAllUsesWith(v Value) {
	replaceAllUsesWith(c, &c.valueBase, v)
}
func (c *Call) String() string {
	args := make([]string, len(c.Args()))
	for i, a := range c.Args() {
		args[i] = nameOf(a)
	}
	prefix := ""
	if _, isVoid := c.ResultType.(VoidType); !isVoid {
		prefix = fmt.Sprintf("%%%s = ", c.name)
	}
	return fmt.Sprintf("%scall %s(%s)", prefix, nameOf(c.Callee()), strings.Join(args, ", "))
}

// --- Phi -----------------------------------------------------------------

// Phi selects one of several incoming values depending on the predecessor
// block control flow arrived from. Each incoming pair occupies two
// consecutive operand slots: value then predecessor block, so that
// ReplaceAllUsesWith on a block rewrites the predecessor edge directly.
type Phi struct {
	instBase
	Result Type
}

func NewPhi(name string, resultType Type) *Phi {
	p := &Phi{Result: resultType}
	p.name = name
	p.init(p)
	return p
}

func (p *Phi) ValueKind() ValueKind { return ValInstruction }
func (p *Phi) Type() Type           { return p.Result }
func (p *Phi) Opcode() string       { return "phi" }

// AddIncoming appends one (value, predecessor) pair. Must be called once
// per predecessor, in the same order the block's Predecessors() returns.
func (p *Phi) AddIncoming(val Value, pred *BasicBlock) {
	base := len(p.ops)
	p.ops = append(p.ops, Use{}, Use{})
	p.ops[base] = Use{Value: val, User: p, Slot: base}
	p.ops[base+1] = Use{Value: pred, User: p, Slot: base + 1}
	if val != nil {
		val.addUse(&p.ops[base])
	}
	pred.addUse(&p.ops[base+1])
}

// RemoveIncoming drops the incoming pair associated with pred, used when
// SimplifyCFG proves an edge into this phi's block unreachable. The pair
// is tombstoned (both slots nilled) rather than spliced out, so every
// other operand keeps the slot index ReplaceAllUsesWith already recorded
// for it in its Use.
func (p *Phi) RemoveIncoming(pred *BasicBlock) {
	for i := 0; i+1 < len(p.ops); i += 2 {
		if p.ops[i+1].Value == Value(pred) {
			p.SetOperand(i, nil)
			p.SetOperand(i+1, nil)
			return
		}
	}
}

// RenamePred retargets the incoming pair associated with old to newPred,
// used when SimplifyCFG merges old into its sole predecessor and the
// control-flow edge now arrives from newPred instead.
func (p *Phi) RenamePred(old, newPred *BasicBlock) {
	for i := 0; i+1 < len(p.ops); i += 2 {
		if p.ops[i+1].Value == Value(old) {
			p.SetOperand(i+1, newPred)
			return
		}
	}
}

// Incoming returns the live (value, predecessor) pairs in insertion
// order, skipping any tombstoned by RemoveIncoming.
func (p *Phi) Incoming() [][2]Value {
	out := make([][2]Value, 0, len(p.ops)/2)
	for i := 0; i+1 < len(p.ops); i += 2 {
		if p.ops[i+1].Value == nil {
			continue
		}
		out = append(out, [2]Value{p.ops[i].Value, p.ops[i+1].Value})
	}
	return out
}

func (p *Phi) ReplaceAllUsesWith(v Value) { replaceAllUsesWith(p, &p.valueBase, v) }
func (p *Phi) String() string {
	pairs := make([]string, 0, len(p.ops)/2)
	for _, pr := range p.Incoming() {
		pairs = append(pairs, fmt.Sprintf("[%s, %%%s]", nameOf(pr[0]), pr[1].Name()))
	}
	return fmt.Sprintf("%%%s = phi %s %s", p.name, p.Result, strings.Join(pairs, ", "))
}

// --- Select --------------------------------------------------------------

// Select is the branchless conditional: IfTrue when Cond is nonzero,
// IfFalse otherwise.
type Select struct {
	instBase
}

func NewSelect(name string, cond, ifTrue, ifFalse Value) *Select {
	s := &Select{}
	s.name = name
	s.init(s, cond, ifTrue, ifFalse)
	return s
}

func (s *Select) ValueKind() ValueKind { return ValInstruction }
func (s *Select) Type() Type           { return s.IfTrue().Type() }
func (s *Select) Opcode() string       { return "select" }
func (s *Select) Cond() Value          { return s.operand(0) }
func (s *Select) IfTrue() Value        { return s.operand(1) }
func (s *Select) IfFalse() Value       { return s.operand(2) }
func (s *Select) ReplaceAllUsesWith(v Value) {
	replaceAllUsesWith(s, &s.valueBase, v)
}
func (s *Select) String() string {
	return fmt.Sprintf("%%%s = select %s, %s, %s", s.name, nameOf(s.Cond()), nameOf(s.IfTrue()), nameOf(s.IfFalse()))
}

// DetachInstruction clears every operand slot of inst, dropping its use
// edges on whatever it referenced. Callers must do this before removing
// a dead instruction from its block, or the removed instruction lingers
// in its former operands' user lists.
func DetachInstruction(inst Instruction) {
	for i := range inst.Operands() {
		inst.SetOperand(i, nil)
	}
}

// nameOf renders an operand the way the textual printer does: the literal
// form for constants, a %-prefixed reference for everything else.
func nameOf(v Value) string {
	if v == nil {
		return "<nil>"
	}
	if v.ValueKind() == ValConstant {
		if s, ok := v.(fmt.Stringer); ok {
			return s.String()
		}
	}
	return "%" + v.Name()
}
