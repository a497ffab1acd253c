package passes

import "scathago/internal/ir"

// SROA (scalar replacement of aggregates) splits a struct- or array-typed
// Alloca into one Alloca per member when every use reaches the aggregate
// only through a GetElementPointer at a constant index: each member then
// gets its own independent stack slot, which Mem2Reg can promote to a
// register even though the original aggregate alloca — addressed as a
// whole — could not be.
type SROA struct{}

func (SROA) Name() string        { return "sroa" }
func (SROA) Description() string { return "splits aggregate allocas into per-member allocas" }

func (SROA) Apply(fn *ir.Function) bool {
	changed := false
	for _, bb := range fn.Blocks {
		for _, inst := range append([]ir.Instruction(nil), bb.Instructions()...) {
			alloc, ok := inst.(*ir.Alloca)
			if !ok {
				continue
			}
			if splitAlloca(fn, alloc) {
				changed = true
			}
		}
	}
	return changed
}

// memberCount reports how many scalar-replaceable members the alloca's
// type has, or 0 if it isn't a splittable aggregate.
func memberCount(t ir.Type) (elemAt func(int) ir.Type, count int, ok bool) {
	switch agg := t.(type) {
	case *ir.StructType:
		return func(i int) ir.Type { return agg.Elems[i] }, len(agg.Elems), true
	case *ir.ArrayType:
		return func(int) ir.Type { return agg.Elem }, agg.Count, true
	default:
		return nil, 0, false
	}
}

// splitAlloca replaces alloc with one Alloca per member if every use is a
// GetElementPointer with a single constant index directly on the
// aggregate (no nested GEP chains, no escaping uses).
func splitAlloca(fn *ir.Function, alloc *ir.Alloca) bool {
	elemAt, count, ok := memberCount(alloc.AllocatedType)
	if !ok || count == 0 {
		return false
	}

	geps := make([]*ir.GetElementPointer, 0, len(alloc.Users()))
	for _, use := range alloc.Users() {
		gep, ok := use.User.(*ir.GetElementPointer)
		if !ok || use.Slot != 0 {
			return false
		}
		indices := gep.Indices()
		if len(indices) != 1 {
			return false
		}
		idxConst, ok := indices[0].(*ir.IntConst)
		if !ok || int(idxConst.Val) >= count {
			return false
		}
		geps = append(geps, gep)
	}
	if len(geps) == 0 {
		return false
	}

	members := make([]*ir.Alloca, count)
	for _, gep := range geps {
		idx := int(gep.Indices()[0].(*ir.IntConst).Val)
		if members[idx] == nil {
			members[idx] = ir.NewAlloca(alloc.Name()+".sroa", elemAt(idx))
			alloc.Parent().Prepend(members[idx])
		}
		gep.ReplaceAllUsesWith(members[idx])
	}

	for _, gep := range geps {
		ir.DetachInstruction(gep)
		gep.Parent().Remove(gep)
	}
	ir.DetachInstruction(alloc)
	alloc.Parent().Remove(alloc)
	return true
}
