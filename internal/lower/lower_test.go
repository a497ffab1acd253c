package lower

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scathago/internal/frontend"
	"scathago/internal/ir"
)

func i32() frontend.Type { return frontend.PrimitiveType{Name: "i32"} }

// ident and intLit build frontend.Expr fixtures without resolved types:
// exprBase is unexported, so these fixtures rely on the builder paths
// that never call ResolvedType() — buildBinary reads the already-lowered
// operand's ir.Type() instead, and the IntLitExpr path falls back to i32
// when no type is present.
func ident(name string) *frontend.IdentExpr {
	return &frontend.IdentExpr{Name: name}
}

func intLit(v uint64) *frontend.IntLitExpr {
	return &frontend.IntLitExpr{Value: v}
}

func TestBuildAddFunctionProducesArithmeticAndReturn(t *testing.T) {
	prog := &frontend.Program{
		Functions: []*frontend.FunctionDecl{
			{
				Name:       "add",
				ReturnType: i32(),
				Exported:   true,
				Params: []frontend.ParamDecl{
					{Name: "a", Type: i32()},
					{Name: "b", Type: i32()},
				},
				Body: &frontend.Block{
					Stmts: []frontend.Stmt{
						&frontend.ReturnStmt{
							Value: &frontend.BinaryExpr{
								Op:    frontend.BinAdd,
								Left:  ident("a"),
								Right: ident("b"),
							},
						},
					},
				},
			},
		},
	}

	ctx := ir.NewContext()
	mod, issues := Build(ctx, "m", prog)
	require.Equal(t, 0, issues.Len())
	require.Len(t, mod.Functions, 1)

	fn := mod.Functions[0]
	assert.Equal(t, ir.LinkageExported, fn.Linkage)

	var sawAdd, sawReturn bool
	for _, bb := range fn.Blocks {
		for _, inst := range bb.Instructions() {
			if a, ok := inst.(*ir.Arithmetic); ok && a.Op == ir.OpAdd {
				sawAdd = true
			}
			if _, ok := inst.(*ir.Return); ok {
				sawReturn = true
			}
		}
	}
	assert.True(t, sawAdd, "expected the lowered body to contain an add")
	assert.True(t, sawReturn, "expected a terminating return")
}

func TestBuildIfStmtProducesThreeBlocksAndBranch(t *testing.T) {
	prog := &frontend.Program{
		Functions: []*frontend.FunctionDecl{
			{
				Name:       "pick",
				ReturnType: i32(),
				Params: []frontend.ParamDecl{
					{Name: "n", Type: i32()},
				},
				Body: &frontend.Block{
					Stmts: []frontend.Stmt{
						&frontend.IfStmt{
							Cond: &frontend.BinaryExpr{
								Op:    frontend.BinLt,
								Left:  ident("n"),
								Right: intLit(0),
							},
							Then: &frontend.Block{
								Stmts: []frontend.Stmt{
									&frontend.ReturnStmt{Value: intLit(0)},
								},
							},
						},
						&frontend.ReturnStmt{Value: ident("n")},
					},
				},
			},
		},
	}

	ctx := ir.NewContext()
	mod, issues := Build(ctx, "m", prog)
	require.Equal(t, 0, issues.Len())

	fn := mod.Functions[0]
	// entry, if.then, if.end: no explicit else branch was given, so the
	// else edge should target the join block directly.
	assert.Len(t, fn.Blocks, 3)

	entry := fn.Entry()
	br, ok := entry.Terminator().(*ir.Branch)
	require.True(t, ok, "entry should end in a branch on the comparison")
	assert.NotEqual(t, br.IfTrue(), br.IfFalse())
}

func TestBuildWhileStmtFormsABackEdge(t *testing.T) {
	prog := &frontend.Program{
		Functions: []*frontend.FunctionDecl{
			{
				Name:       "spin",
				ReturnType: frontend.PrimitiveType{Name: "void"},
				Params: []frontend.ParamDecl{
					{Name: "n", Type: i32()},
				},
				Body: &frontend.Block{
					Stmts: []frontend.Stmt{
						&frontend.WhileStmt{
							Cond: &frontend.BinaryExpr{
								Op:    frontend.BinGt,
								Left:  ident("n"),
								Right: intLit(0),
							},
							Body: &frontend.Block{},
						},
					},
				},
			},
		},
	}

	ctx := ir.NewContext()
	mod, issues := Build(ctx, "m", prog)
	require.Equal(t, 0, issues.Len())

	fn := mod.Functions[0]
	var head, body *ir.BasicBlock
	for _, bb := range fn.Blocks {
		switch bb.Name() {
		case "while.head.1":
			head = bb
		case "while.body.2":
			body = bb
		}
	}
	require.NotNil(t, head, "expected a while.head block")
	require.NotNil(t, body, "expected a while.body block")
	assert.Contains(t, head.Predecessors(), body, "the loop body must branch back to the header")
}

func TestBuildForeignFunctionDeclaresNoBody(t *testing.T) {
	prog := &frontend.Program{
		Functions: []*frontend.FunctionDecl{
			{
				Name:       "host_log",
				ReturnType: frontend.PrimitiveType{Name: "void"},
				Foreign:    true,
				Params: []frontend.ParamDecl{
					{Name: "code", Type: i32()},
				},
			},
		},
	}

	ctx := ir.NewContext()
	mod, issues := Build(ctx, "m", prog)
	require.Equal(t, 0, issues.Len())
	assert.Empty(t, mod.Functions)
	require.Len(t, mod.Foreigns, 1)
	assert.Equal(t, "host_log", mod.Foreigns[0].Name())
}

func TestBuildUndeclaredVariableReportsIssue(t *testing.T) {
	prog := &frontend.Program{
		Functions: []*frontend.FunctionDecl{
			{
				Name:       "bad",
				ReturnType: i32(),
				Body: &frontend.Block{
					Stmts: []frontend.Stmt{
						&frontend.ReturnStmt{Value: ident("ghost")},
					},
				},
			},
		},
	}

	ctx := ir.NewContext()
	_, issues := Build(ctx, "m", prog)
	require.Equal(t, 1, issues.Len())
	assert.Equal(t, "E0130", issues.Items()[0].Code)
}
