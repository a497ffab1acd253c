// Package irtext implements the textual surface syntax for the IR: a
// canonical printer and a parser (built on alecthomas/participle, the
// same library the front end's own grammar package uses) that reads
// that notation back into a live ir.Module. This round-trip is what
// lets a pass's output be inspected or diffed as text, and what lets
// codegen/test fixtures be authored directly in IR syntax instead of
// only built programmatically.
package irtext

import (
	"fmt"
	"sort"
	"strings"

	"scathago/internal/ir"
)

// Print renders every global, foreign declaration, and function body in
// m to the canonical textual form this package's grammar parses back.
func Print(m *ir.Module) string {
	var b strings.Builder
	fmt.Fprintf(&b, "module %s\n", m.Name)

	for _, st := range m.Structs {
		fields := make([]string, len(st.Elems))
		for i, e := range st.Elems {
			fields[i] = e.String()
		}
		fmt.Fprintf(&b, "struct @%s { %s }\n", st.Name, strings.Join(fields, ", "))
	}
	for _, g := range m.Globals {
		kind := "global"
		if g.Const {
			kind = "constant"
		}
		if g.Initializer != nil {
			fmt.Fprintf(&b, "@%s = %s %s %s\n", g.Name(), kind, g.ValueType, ref(g.Initializer))
		} else {
			fmt.Fprintf(&b, "@%s = %s %s\n", g.Name(), kind, g.ValueType)
		}
	}
	for _, f := range m.Foreigns {
		fmt.Fprintf(&b, "declare %s @%s(%s)\n", f.ReturnType, f.Name(), joinTypes(f.ParamTypes))
	}
	for _, fn := range m.Functions {
		printFunction(&b, fn)
	}
	return b.String()
}

// PrintSorted is Print with functions emitted in lexical name order, for
// diff-stable golden output where slice build order shouldn't matter.
func PrintSorted(m *ir.Module) string {
	fns := append([]*ir.Function(nil), m.Functions...)
	sort.Slice(fns, func(i, j int) bool { return fns[i].Name() < fns[j].Name() })
	cp := *m
	cp.Functions = fns
	return Print(&cp)
}

func joinTypes(ts []ir.Type) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}

func printFunction(b *strings.Builder, fn *ir.Function) {
	params := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = fmt.Sprintf("%s %%%s", p.Ty, p.Name())
	}
	fmt.Fprintf(b, "\nfunc %s @%s(%s) {\n", fn.ReturnType, fn.Name(), strings.Join(params, ", "))
	for _, bb := range fn.Blocks {
		fmt.Fprintf(b, "%%%s:\n", bb.Name())
		for _, inst := range bb.Instructions() {
			fmt.Fprintf(b, "  %s\n", printInst(inst))
		}
	}
	b.WriteString("}\n")
}

func ref(v ir.Value) string {
	if v == nil {
		return ""
	}
	switch c := v.(type) {
	case *ir.IntConst:
		return fmt.Sprintf("%s %d", c.Ty, c.Val)
	case *ir.FloatConst:
		return fmt.Sprintf("%s %g", c.Ty, c.Val)
	case *ir.NullConst:
		return "null"
	case *ir.UndefConst:
		return fmt.Sprintf("%s undef", c.Ty)
	case *ir.BasicBlock:
		return "%" + c.Name()
	case *ir.Function:
		return "@" + c.Name()
	case *ir.ForeignFunction:
		return "@" + c.Name()
	case *ir.GlobalVariable:
		return "@" + c.Name()
	default:
		return "%" + v.Name()
	}
}

func printInst(inst ir.Instruction) string {
	switch t := inst.(type) {
	case *ir.Alloca:
		return fmt.Sprintf("%%%s = alloca %s", t.Name(), t.AllocatedType)
	case *ir.Load:
		return fmt.Sprintf("%%%s = load %s, %s", t.Name(), t.LoadedType, ref(t.Ptr()))
	case *ir.Store:
		return fmt.Sprintf("store %s, %s", ref(t.Val()), ref(t.Ptr()))
	case *ir.GetElementPointer:
		idx := make([]string, len(t.Indices()))
		for i, v := range t.Indices() {
			idx[i] = ref(v)
		}
		return fmt.Sprintf("%%%s = gep %s, %s, [%s]", t.Name(), t.BaseType, ref(t.Base()), strings.Join(idx, ", "))
	case *ir.Arithmetic:
		return fmt.Sprintf("%%%s = %s %s, %s", t.Name(), t.Op, ref(t.LHS()), ref(t.RHS()))
	case *ir.UnaryArithmetic:
		return fmt.Sprintf("%%%s = %s %s", t.Name(), t.Op, ref(t.X()))
	case *ir.Compare:
		return fmt.Sprintf("%%%s = cmp %s %s, %s", t.Name(), t.Pred, ref(t.LHS()), ref(t.RHS()))
	case *ir.ConversionInst:
		return fmt.Sprintf("%%%s = %s %s to %s", t.Name(), t.Op, ref(t.X()), t.Target)
	case *ir.InsertValue:
		return fmt.Sprintf("%%%s = insertvalue %s, %s, %d", t.Name(), ref(t.Agg()), ref(t.Elem()), t.Index)
	case *ir.ExtractValue:
		return fmt.Sprintf("%%%s = extractvalue %s, %d", t.Name(), ref(t.Agg()), t.Index)
	case *ir.Phi:
		pairs := make([]string, 0, len(t.Incoming()))
		for _, p := range t.Incoming() {
			pairs = append(pairs, fmt.Sprintf("[%s, %s]", ref(p[0]), ref(p[1])))
		}
		return fmt.Sprintf("%%%s = phi %s %s", t.Name(), t.Result, strings.Join(pairs, ", "))
	case *ir.Select:
		return fmt.Sprintf("%%%s = select %s, %s, %s", t.Name(), ref(t.Cond()), ref(t.IfTrue()), ref(t.IfFalse()))
	case *ir.Call:
		args := make([]string, len(t.Args()))
		for i, a := range t.Args() {
			args[i] = ref(a)
		}
		prefix := ""
		if _, isVoid := t.ResultType.(ir.VoidType); !isVoid {
			prefix = fmt.Sprintf("%%%s = ", t.Name())
		}
		return fmt.Sprintf("%scall %s %s(%s)", prefix, t.ResultType, ref(t.Callee()), strings.Join(args, ", "))
	case *ir.Goto:
		return fmt.Sprintf("goto %s", ref(t.Target()))
	case *ir.Branch:
		return fmt.Sprintf("branch %s, %s, %s", ref(t.Cond()), ref(t.IfTrue()), ref(t.IfFalse()))
	case *ir.Return:
		if t.Val() == nil {
			return "return void"
		}
		return fmt.Sprintf("return %s", ref(t.Val()))
	default:
		return fmt.Sprintf("; unprintable instruction %s", inst.Opcode())
	}
}
