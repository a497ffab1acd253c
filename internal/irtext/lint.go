package irtext

import (
	"github.com/iancoleman/strcase"

	"scathago/internal/ir"
	"scathago/internal/issue"
)

// Lint checks naming-convention style points the grammar itself can't
// enforce (punctuation and case are syntactically legal either way):
// every function and global should be named in snake_case, matching the
// convention the rest of this notation's keywords and mnemonics use.
// Violations are warnings, not parse errors — the module still builds.
func Lint(m *ir.Module) *issue.List {
	l := &issue.List{}
	for _, fn := range m.Functions {
		checkName(l, "function", fn.Name())
	}
	for _, g := range m.Globals {
		checkName(l, "global", g.Name())
	}
	return l
}

func checkName(l *issue.List, kind, name string) {
	if name == "" {
		return
	}
	if snake := strcase.ToSnake(name); snake != name {
		l.Add(issue.Issue{
			Level:   issue.LevelWarning,
			Code:    "naming-convention",
			Message: kind + " \"" + name + "\" is not snake_case",
			Suggestions: []issue.Suggestion{
				{Message: "rename to " + snake, Replacement: snake},
			},
		})
	}
}
