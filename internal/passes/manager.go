package passes

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"scathago/internal/clog"
	"scathago/internal/ir"
)

// Config is the YAML document driving the pass manager: an ordered list
// of pass names, plus how many times to repeat the whole sequence to a
// fixpoint (most pipelines converge in two or three rounds).
type Config struct {
	Passes        []string `yaml:"passes"`
	MaxRounds     int      `yaml:"max_rounds"`
	VerifyAfter   bool     `yaml:"verify_after_each_pass"`
}

// DefaultConfig is the catalog run when a driver doesn't supply its own
// pipeline YAML, ordered the way the pass descriptions
// suggest running them: cleanup (Mem2Reg/SROA) before analysis-driven
// folding (SCCP), then the passes that most benefit from folded
// constants (SimplifyCFG, InstCombine, Inliner, invariant propagation),
// with DCE as the final sweep.
var DefaultConfig = Config{
	Passes: []string{
		"mem2reg", "sroa", "sccp", "simplifycfg", "instcombine",
		"invariant-propagation", "licm", "inline", "dce",
	},
	MaxRounds: 2,
}

// ParseConfig reads a pipeline.yaml document.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing pass manager config: %w", err)
	}
	if cfg.MaxRounds == 0 {
		cfg.MaxRounds = 1
	}
	return cfg, nil
}

// Manager sequences a set of named passes over a module, round-robining
// to a fixpoint, generalized to multiple rounds and module-level passes.
type Manager struct {
	cfg     Config
	catalog map[string]Pass
}

func NewManager(cfg Config) *Manager {
	m := &Manager{cfg: cfg, catalog: defaultCatalog()}
	return m
}

func defaultCatalog() map[string]Pass {
	return map[string]Pass{
		"mem2reg":                &Mem2Reg{},
		"sroa":                   &SROA{},
		"sccp":                   &SCCP{},
		"dce":                    &DCE{},
		"simplifycfg":            &SimplifyCFG{},
		"instcombine":            &InstCombine{},
		"invariant-propagation":  &InvariantPropagation{},
		"licm":                   &LICM{},
		"inline":                 &Inliner{},
	}
}

// Run executes the configured passes against every function in m, for up
// to cfg.MaxRounds or until a full round makes no change, whichever
// comes first.
func (mgr *Manager) Run(m *ir.Module) {
	logger := clog.For("passes")
	for round := 0; round < mgr.cfg.MaxRounds; round++ {
		roundChanged := false
		for _, name := range mgr.cfg.Passes {
			pass, ok := mgr.catalog[name]
			if !ok {
				logger.Warning(fmt.Sprintf("pass manager: unknown pass %q, skipping", name))
				continue
			}
			if mp, ok := pass.(ModulePass); ok {
				if mp.ApplyModule(m) {
					roundChanged = true
				}
				continue
			}
			for _, fn := range m.Functions {
				if len(fn.Blocks) == 0 {
					continue
				}
				if pass.Apply(fn) {
					roundChanged = true
					if mgr.cfg.VerifyAfter {
						ir.MustVerify(fn)
					}
				}
			}
		}
		logger.Debug(fmt.Sprintf("pass manager: round %d changed=%v", round, roundChanged))
		if !roundChanged {
			break
		}
	}
}
