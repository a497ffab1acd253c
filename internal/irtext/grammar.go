package irtext

// Grammar for the canonical textual IR: one opcode keyword (or, for
// binary/unary arithmetic, one mnemonic) per instruction line, the same
// shape printer.go emits. Each instruction kind gets its own grammar
// type rather than one generic line shared across opcodes, the same way
// the front end's own surface grammar gives every statement/expression
// kind a dedicated struct — ambiguity between alternatives sharing a
// "%reg =" prefix is resolved by participle's backtracking lookahead.

type File struct {
	Module *ModuleDecl `@@`
}

type ModuleDecl struct {
	Name      string         `"module" @Ident`
	Structs   []*StructDecl  `@@*`
	Globals   []*GlobalDecl  `@@*`
	Declares  []*DeclareDecl `@@*`
	Functions []*FuncDecl    `@@*`
}

// StructDecl declares a named aggregate's member layout: `struct @Name {
// T, T, ... }`, the form printer.go emits for every named struct a
// module's globals or instructions reference.
type StructDecl struct {
	Name   string     `"struct" @Global "{"`
	Fields []*TypeRef `( @@ ( "," @@ )* )? "}"`
}

// GlobalDecl is `@name = global T [init]` or `@name = constant T
// [init]`; Kind distinguishes the two (mutability, orthogonal to
// Linkage's visibility axis). Init is a ConstOperand, not a full
// Operand: a bare `@name` reference would be indistinguishable from the
// next GlobalDecl's own leading token, since nothing else separates one
// module-level declaration from the next.
type GlobalDecl struct {
	Name string        `@Global "="`
	Kind string        `( @"global" | @"constant" )`
	Type *TypeRef      `@@`
	Init *ConstOperand `@@?`
}

// ConstOperand is the literal subset of Operand usable as a global's
// initializer: a typed int/float/undef literal, or bare `null`.
type ConstOperand struct {
	TypedInt   *TypedIntOperand   `  @@`
	TypedFloat *TypedFloatOperand `| @@`
	TypedUndef *TypedUndefOperand `| @@`
	Null       bool               `| @"null"`
}

type DeclareDecl struct {
	RetType *TypeRef   `"declare" @@`
	Name    string     `@Global`
	Params  []*TypeRef `"(" ( @@ ( "," @@ )* )? ")"`
}

// TypeRef is a type reference: a fixed-length array (`[N x T]`), a named
// struct (`@Name`), or a primitive keyword (`i32`, `ptr`, ...).
type TypeRef struct {
	Array  *ArrayTypeRef `(  @@`
	Struct string        ` | @Global`
	Name   string        ` | @Ident )`
	Ptr    bool          `@"*"?`
}

type ArrayTypeRef struct {
	Count int      `"[" @Int "x"`
	Elem  *TypeRef `@@ "]"`
}

type FuncDecl struct {
	RetType *TypeRef     `"func" @@`
	Name    string       `@Global`
	Params  []*ParamDecl `"(" ( @@ ( "," @@ )* )? ")"`
	Blocks  []*BlockDecl `"{" @@* "}"`
}

type ParamDecl struct {
	Type *TypeRef `@@`
	Name string   `@Register`
}

type BlockDecl struct {
	Label string      `@Register ":"`
	Insts []*InstLine `@@*`
}

// InstLine is a discriminated union over every instruction kind the
// grammar understands; exactly one field is non-nil after a successful
// parse. buildInst in parser.go switches on which.
type InstLine struct {
	Alloca       *AllocaInst       `  @@`
	Load         *LoadInst         `| @@`
	Store        *StoreInst        `| @@`
	Gep          *GepInst          `| @@`
	Cmp          *CmpInst          `| @@`
	Conv         *ConvInst         `| @@`
	InsertValue  *InsertValueInst  `| @@`
	ExtractValue *ExtractValueInst `| @@`
	Phi          *PhiInst          `| @@`
	Select       *SelectInst       `| @@`
	Call         *CallInst         `| @@`
	Goto         *GotoInst         `| @@`
	Branch       *BranchInst       `| @@`
	Return       *ReturnInst       `| @@`
	Arith        *ArithInst        `| @@`
}

type AllocaInst struct {
	Result string   `@Register "=" "alloca"`
	Type   *TypeRef `@@`
}

type LoadInst struct {
	Result string   `@Register "=" "load"`
	Type   *TypeRef `@@ ","`
	Ptr    *Operand `@@`
}

type StoreInst struct {
	Val *Operand `"store" @@ ","`
	Ptr *Operand `@@`
}

type GepInst struct {
	Result  string     `@Register "=" "gep"`
	Type    *TypeRef   `@@ ","`
	Base    *Operand   `@@ ","`
	Indices []*Operand `"[" ( @@ ( "," @@ )* )? "]"`
}

type InsertValueInst struct {
	Result string   `@Register "=" "insertvalue"`
	Agg    *Operand `@@ ","`
	Elem   *Operand `@@ ","`
	Index  int      `@Int`
}

type ExtractValueInst struct {
	Result string   `@Register "=" "extractvalue"`
	Agg    *Operand `@@ ","`
	Index  int      `@Int`
}

type CmpInst struct {
	Result string   `@Register "=" "cmp"`
	Pred   string    `@Ident`
	LHS    *Operand `@@ ","`
	RHS    *Operand `@@`
}

type ConvInst struct {
	Result string   `@Register "="`
	Op     string   `@Ident`
	X      *Operand `@@ "to"`
	Target *TypeRef `@@`
}

type PhiInst struct {
	Result string     `@Register "=" "phi"`
	Type   *TypeRef   `@@`
	Pairs  []*PhiPair `@@ ( "," @@ )*`
}

type PhiPair struct {
	Val  *Operand `"[" @@ ","`
	Pred *Operand `@@ "]"`
}

type SelectInst struct {
	Result  string   `@Register "=" "select"`
	Cond    *Operand `@@ ","`
	IfTrue  *Operand `@@ ","`
	IfFalse *Operand `@@`
}

type CallInst struct {
	Result *string    `( @Register "=" )?`
	Type   *TypeRef   `"call" @@`
	Callee *Operand   `@@`
	Args   []*Operand `"(" ( @@ ( "," @@ )* )? ")"`
}

type GotoInst struct {
	Target *Operand `"goto" @@`
}

type BranchInst struct {
	Cond    *Operand `"branch" @@ ","`
	IfTrue  *Operand `@@ ","`
	IfFalse *Operand `@@`
}

type ReturnInst struct {
	Void bool     `"return" ( @"void"`
	Val  *Operand `| @@ )`
}

type ArithInst struct {
	Result string   `@Register "="`
	Op     string   `@Ident`
	LHS    *Operand `@@`
	RHS    *Operand `( "," @@ )?`
}

// Operand is a typed literal (`i32 5`, `f64 3.0`, `i32 undef`), a bare
// `null`, a register reference, or a global/function reference. Each
// top-level alternative is tried in order until one fully matches, so a
// struct-typed literal's leading `@Name` can never be mistaken for a
// bare global reference: if TypedInt/TypedFloat/TypedUndef fail to find
// their trailing literal or "undef" keyword, parsing falls through to
// Glob instead of committing to the type prefix.
type Operand struct {
	TypedInt   *TypedIntOperand   `  @@`
	TypedFloat *TypedFloatOperand `| @@`
	TypedUndef *TypedUndefOperand `| @@`
	Null       bool               `| @"null"`
	Reg        *string            `| @Register`
	Glob       *string            `| @Global`
}

type TypedIntOperand struct {
	Type *TypeRef `@@`
	Val  int64    `@Int`
}

type TypedFloatOperand struct {
	Type *TypeRef `@@`
	Val  float64  `@Float`
}

type TypedUndefOperand struct {
	Type *TypeRef `@@ "undef"`
}
