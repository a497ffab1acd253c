package ir

// ValueKind discriminates the closed Value hierarchy: Parameter,
// Constant, BasicBlock, and Instruction all implement Value.
type ValueKind uint8

const (
	ValParameter ValueKind = iota
	ValConstant
	ValBlock
	ValInstruction
)

// Value is any SSA entity that carries a type and may be used as an
// operand. Every operand slot is a tracked Use edge: replacing a value
// walks its user list and rewrites each edge (USE-DEF invariant, ).
type Value interface {
	ValueKind() ValueKind
	Type() Type
	Name() string
	SetName(string)
	Users() []*Use
	// ReplaceAllUsesWith rewrites every recorded use of this value to v,
	// in O(uses) as required by the use-edge model.
	ReplaceAllUsesWith(v Value)

	addUse(u *Use)
	dropUse(u *Use)
}

// Use is a single tracked operand edge from a User instruction to the
// value occupying one of its operand slots.
type Use struct {
	Value Value
	User  Instruction
	Slot  int
}

// valueBase implements the bookkeeping shared by every Value variant:
// name, user list, and the edge-rewrite machinery. Concrete kinds embed
// it rather than each repeating the same four accessor methods.
type valueBase struct {
	name  string
	users []*Use
}

func (v *valueBase) Name() string     { return v.name }
func (v *valueBase) SetName(n string) { v.name = n }
func (v *valueBase) Users() []*Use    { return v.users }

func (v *valueBase) addUse(u *Use) {
	v.users = append(v.users, u)
}

func (v *valueBase) dropUse(u *Use) {
	for i, existing := range v.users {
		if existing == u {
			v.users = append(v.users[:i], v.users[i+1:]...)
			return
		}
	}
}

// replaceAllUsesWith is shared by every concrete Value; self is the
// value being replaced, target its embedding valueBase, repl the
// replacement. It rewrites every user's operand slot in place and
// transfers the use records to the replacement's user list.
func replaceAllUsesWith(self Value, target *valueBase, repl Value) {
	if self == repl {
		return
	}
	pending := target.users
	target.users = nil
	for _, u := range pending {
		u.User.SetOperand(u.Slot, repl)
	}
}

// ValueRef is a weak, generation-checked reference into a Context's value
// arena: it observes destruction without owning the referent (design,
// "Back-references (ValueRef)"). analysis.PointerInfo keeps its Base as a
// plain Value, and SCEV's Unknown node holds only the zero ValueRef, so
// neither keeps a live ValueRef.
type ValueRef struct {
	id  int
	gen uint32
}

// Resolve looks the reference up in ctx's arena; ok is false if the
// referent has since been destroyed (its generation was bumped).
func (r ValueRef) Resolve(ctx *Context) (Value, bool) {
	if r.id < 0 || r.id >= len(ctx.arena) {
		return nil, false
	}
	slot := ctx.arena[r.id]
	if slot.gen != r.gen || slot.value == nil {
		return nil, false
	}
	return slot.value, true
}

// Valid reports whether r still names a live value in ctx.
func (r ValueRef) Valid(ctx *Context) bool {
	_, ok := r.Resolve(ctx)
	return ok
}
