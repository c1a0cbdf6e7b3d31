package ccx

import (
	"time"

	"github.com/goliatone/go-ccx/pkg/activity"
)

// Option configures an Overrides instance.
type Option func(*overridesConfig)

type overridesConfig struct {
	logger        OverrideLogger
	policy        FieldPolicy
	activityHooks activity.Hooks
	activity      activity.Config
	emitter       *activity.Emitter
	now           func() time.Time
}

func applyOptions(opts []Option) overridesConfig {
	var cfg overridesConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = noopOverrideLogger{}
	}
	if cfg.policy == nil {
		cfg.policy = AllowAll()
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	cfg.emitter = activity.NewEmitter(cfg.activityHooks, cfg.activity)
	return cfg
}

// WithLogger attaches an override logger.
func WithLogger(logger OverrideLogger) Option {
	return func(cfg *overridesConfig) {
		if logger == nil {
			cfg.logger = noopOverrideLogger{}
			return
		}
		cfg.logger = logger
	}
}

// WithPolicy restricts which fields may be overridden. The default accepts
// every field the block defines.
func WithPolicy(policy FieldPolicy) Option {
	return func(cfg *overridesConfig) {
		cfg.policy = policy
	}
}

// WithActivityHooks attaches hooks notified after every successful write or
// delete.
func WithActivityHooks(hooks activity.Hooks) Option {
	hooks = append(activity.Hooks(nil), hooks...)
	return func(cfg *overridesConfig) {
		cfg.activityHooks = hooks
	}
}

// WithActivityConfig replaces the activity emission defaults (enabled,
// channel "ccx").
func WithActivityConfig(config activity.Config) Option {
	return func(cfg *overridesConfig) {
		cfg.activity = config
	}
}

// WithClock replaces the clock used to timestamp activity events.
func WithClock(now func() time.Time) Option {
	return func(cfg *overridesConfig) {
		cfg.now = now
	}
}

// ActivityHooks returns a copy of the configured hooks.
func (o *Overrides) ActivityHooks() activity.Hooks {
	if o == nil {
		return nil
	}
	return append(activity.Hooks(nil), o.cfg.activityHooks...)
}
