package codegen

import "scathago/internal/ir"

// Opcode is the VM's instruction mnemonic. Several source opcodes that
// differ only by operand shape (movRR/movRV/movMR/movRM) are folded to
// one family here; signed and unsigned compares stay separate opcodes
// (OpScmp/OpUcmp). select.go's job
// is choosing the concrete Opcode, emit.go's is choosing the concrete
// encoding.
type Opcode uint8

const (
	OpEnterFn Opcode = iota
	OpCall
	OpCallExt
	OpRet
	OpTerminate
	OpMov
	OpAlloca
	OpJmp
	OpJe
	OpJne
	OpJl
	OpJle
	OpJg
	OpJge
	OpUcmp
	OpScmp
	OpFcmp
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpIDiv
	OpRem
	OpIRem
	OpFAdd
	OpFSub
	OpFMul
	OpFDiv
	OpSl
	OpSr
	OpAnd
	OpOr
	OpXor
	OpSete
	OpSetne
	OpSetl
	OpSetle
	OpSetg
	OpSetge
)

var opcodeMnemonic = map[Opcode]string{
	OpEnterFn: "enterFn", OpCall: "call", OpCallExt: "callExt", OpRet: "ret",
	OpTerminate: "terminate", OpMov: "mov", OpAlloca: "alloca_", OpJmp: "jmp",
	OpJe: "je", OpJne: "jne", OpJl: "jl", OpJle: "jle", OpJg: "jg", OpJge: "jge",
	OpUcmp: "ucmp", OpScmp: "icmp", OpFcmp: "fcmp",
	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpDiv: "div", OpIDiv: "idiv",
	OpRem: "rem", OpIRem: "irem", OpFAdd: "fadd", OpFSub: "fsub", OpFMul: "fmul", OpFDiv: "fdiv",
	OpSl: "sl", OpSr: "sr", OpAnd: "and", OpOr: "or", OpXor: "xor",
	OpSete: "sete", OpSetne: "setne", OpSetl: "setl", OpSetle: "setle", OpSetg: "setg", OpSetge: "setge",
}

func (o Opcode) String() string { return opcodeMnemonic[o] }

// arithFamily maps an arithmetic mnemonic to its opcode; division and
// remainder further split on signedness, which ArithOpcode resolves
// from the IR's own signed/unsigned op pair.
var arithFamily = map[ir.ArithOp]Opcode{
	ir.OpAdd: OpAdd, ir.OpSub: OpSub, ir.OpMul: OpMul,
	ir.OpUDiv: OpDiv, ir.OpSDiv: OpIDiv,
	ir.OpURem: OpRem, ir.OpSRem: OpIRem,
	ir.OpAnd: OpAnd, ir.OpOr: OpOr, ir.OpXor: OpXor,
	ir.OpShl: OpSl, ir.OpLShr: OpSr, ir.OpAShr: OpSr,
	ir.OpFAdd: OpFAdd, ir.OpFSub: OpFSub, ir.OpFMul: OpFMul, ir.OpFDiv: OpFDiv,
}

// ArithOpcode selects the VM opcode implementing op.
func ArithOpcode(op ir.ArithOp) (Opcode, bool) {
	oc, ok := arithFamily[op]
	return oc, ok
}

// isFloatPred reports whether pred compares floating-point operands, in
// which case CompareOpcode must select fcmp rather than ucmp/icmp.
func isFloatPred(pred ir.ComparePred) bool {
	switch pred {
	case ir.PredOeq, ir.PredOne, ir.PredOlt, ir.PredOgt, ir.PredOle, ir.PredOge:
		return true
	}
	return false
}

// isSignedPred reports whether pred needs the signed comparison opcode.
func isSignedPred(pred ir.ComparePred) bool {
	switch pred {
	case ir.PredSlt, ir.PredSgt, ir.PredSle, ir.PredSge:
		return true
	}
	return false
}

// CompareOpcode selects the comparison instruction a Compare lowers to.
func CompareOpcode(pred ir.ComparePred) Opcode {
	switch {
	case isFloatPred(pred):
		return OpFcmp
	case isSignedPred(pred):
		return OpScmp
	default:
		return OpUcmp
	}
}

// SetOpcode selects the set-on-condition instruction that materializes
// a comparison's flags into a boolean register, for a Compare whose
// result is consumed by something other than an immediately-following
// Branch (stored, passed as an argument, fed into a Phi, ...).
func SetOpcode(pred ir.ComparePred) Opcode {
	switch pred {
	case ir.PredEq, ir.PredOeq:
		return OpSete
	case ir.PredNe, ir.PredOne:
		return OpSetne
	case ir.PredSlt, ir.PredUlt, ir.PredOlt:
		return OpSetl
	case ir.PredSle, ir.PredUle, ir.PredOle:
		return OpSetle
	case ir.PredSgt, ir.PredUgt, ir.PredOgt:
		return OpSetg
	case ir.PredSge, ir.PredUge, ir.PredOge:
		return OpSetge
	default:
		return OpSetne
	}
}

// CondJumpOpcode selects the conditional jump following a comparison
// with predicate pred, assuming the comparison's result drives the jump
// directly (true branch taken when the jump fires).
func CondJumpOpcode(pred ir.ComparePred) Opcode {
	switch pred {
	case ir.PredEq, ir.PredOeq:
		return OpJe
	case ir.PredNe, ir.PredOne:
		return OpJne
	case ir.PredSlt, ir.PredUlt, ir.PredOlt:
		return OpJl
	case ir.PredSle, ir.PredUle, ir.PredOle:
		return OpJle
	case ir.PredSgt, ir.PredUgt, ir.PredOgt:
		return OpJg
	case ir.PredSge, ir.PredUge, ir.PredOge:
		return OpJge
	default:
		return OpJne
	}
}
