package analysis

import "scathago/internal/ir"

// ProvenanceKind distinguishes an address traceable to a single known
// allocation (Static) from one only known to come from some pointer
// argument or load (Dynamic).
type ProvenanceKind uint8

const (
	ProvenanceStatic ProvenanceKind = iota
	ProvenanceDynamic
)

// PointerInfo is the provenance record computed for one pointer-typed
// SSA value: where it points, whether the offset from that base is
// known, and facts the code generator and alias queries can exploit
// (guaranteed-non-null, non-escaping).
type PointerInfo struct {
	Kind ProvenanceKind

	// Base is the Alloca or GlobalVariable this pointer was ultimately
	// derived from, valid when Kind == ProvenanceStatic.
	Base ir.Value

	// StaticProvenanceOffset is the constant byte offset from Base, valid
	// when Kind == ProvenanceStatic and the GEP chain leading here used
	// only constant indices.
	StaticProvenanceOffset int
	OffsetKnown            bool

	Align             int
	GuaranteedNotNull bool
	NonEscaping       bool
}

// AnalyzePointer traces v back through GEP/bitcast chains to its
// provenance.
func AnalyzePointer(v ir.Value) PointerInfo {
	offset := 0
	offsetKnown := true
	cur := v

	for {
		switch t := cur.(type) {
		case *ir.Alloca:
			return PointerInfo{
				Kind: ProvenanceStatic, Base: t, StaticProvenanceOffset: offset,
				OffsetKnown: offsetKnown, Align: t.AllocatedType.Align(),
				GuaranteedNotNull: true, NonEscaping: !escapes(t),
			}
		case *ir.GlobalVariable:
			return PointerInfo{
				Kind: ProvenanceStatic, Base: t, StaticProvenanceOffset: offset,
				OffsetKnown: offsetKnown, Align: t.ValueType.Align(),
				GuaranteedNotNull: true, NonEscaping: false,
			}
		case *ir.GetElementPointer:
			delta, known := constantGEPOffset(t)
			if known {
				offset += delta
			} else {
				offsetKnown = false
			}
			cur = t.Base()
		case *ir.ConversionInst:
			if t.Op == ir.ConvBitcast {
				cur = t.X()
				continue
			}
			return PointerInfo{Kind: ProvenanceDynamic, Align: 1}
		case *ir.NullConst:
			return PointerInfo{Kind: ProvenanceDynamic, Align: 1, GuaranteedNotNull: false}
		default:
			return PointerInfo{Kind: ProvenanceDynamic, Align: 1}
		}
	}
}

func constantGEPOffset(g *ir.GetElementPointer) (int, bool) {
	st, isStruct := g.BaseType.(*ir.StructType)
	indices := g.Indices()
	if isStruct && len(indices) == 1 {
		if c, ok := indices[0].(*ir.IntConst); ok {
			return st.MemberOffset(int(c.Val)), true
		}
	}
	if at, isArray := g.BaseType.(*ir.ArrayType); isArray && len(indices) == 1 {
		if c, ok := indices[0].(*ir.IntConst); ok {
			return int(c.Val) * at.Elem.Size(), true
		}
	}
	return 0, false
}

// escapes is a deliberately conservative approximation: an Alloca escapes
// if its address (or a GEP derived from it) is ever passed as a Call
// argument, stored into memory, or returned.
func escapes(alloc *ir.Alloca) bool {
	seen := map[ir.Value]bool{}
	var walk func(v ir.Value) bool
	walk = func(v ir.Value) bool {
		if seen[v] {
			return false
		}
		seen[v] = true
		for _, use := range v.Users() {
			switch u := use.User.(type) {
			case *ir.Load:
				continue
			case *ir.Store:
				if use.Slot == 1 {
					return true // stored as the value, not just the address
				}
			case *ir.GetElementPointer:
				if walk(u) {
					return true
				}
			case *ir.Call, *ir.Return:
				return true
			default:
				return true
			}
		}
		return false
	}
	return walk(alloc)
}

// MayAlias conservatively reports whether a and b could refer to
// overlapping memory, using provenance rather than full points-to sets:
// two statically-based pointers with distinct bases never alias; anything
// involving a dynamic base is assumed to possibly alias.
func MayAlias(a, b PointerInfo) bool {
	if a.Kind == ProvenanceStatic && b.Kind == ProvenanceStatic {
		if a.Base != b.Base {
			return false
		}
		if a.OffsetKnown && b.OffsetKnown {
			return a.StaticProvenanceOffset == b.StaticProvenanceOffset
		}
	}
	return true
}
