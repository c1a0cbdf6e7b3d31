package rules

import "strings"

// Option configures an Evaluator.
type Option func(*evaluatorConfig)

type evaluatorConfig struct {
	cache   ProgramCache
	helpers *Helpers
}

// WithProgramCache shares compiled programs between evaluators and policies.
func WithProgramCache(cache ProgramCache) Option {
	return func(cfg *evaluatorConfig) {
		cfg.cache = cache
	}
}

// WithHelpers makes helpers callable from expressions by name.
func WithHelpers(helpers *Helpers) Option {
	return func(cfg *evaluatorConfig) {
		cfg.helpers = helpers
	}
}

func applyOptions(opts []Option) evaluatorConfig {
	var cfg evaluatorConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// cacheKey scopes a program to its engine and helper set, since programs
// compiled against different helpers are not interchangeable.
func (cfg evaluatorConfig) cacheKey(engine, expression string) string {
	return engine + "|" + strings.Join(cfg.helpers.Names(), ",") + "|" + expression
}

func (cfg evaluatorConfig) cached(engine, expression string) (any, bool) {
	if cfg.cache == nil {
		return nil, false
	}
	return cfg.cache.Get(cfg.cacheKey(engine, expression))
}

func (cfg evaluatorConfig) store(engine, expression string, program any) {
	if cfg.cache != nil {
		cfg.cache.Set(cfg.cacheKey(engine, expression), program)
	}
}
