package ccx

import "context"

// notSet is the type of the NotSet sentinel.
type notSet struct{}

// NotSet is returned by providers inside a ProviderChain to signal that they
// have no value for a field.
var NotSet any = notSet{}

// FieldOverrideProvider resolves the effective value of a block field. The
// content-rendering system holds one provider and calls it for every field
// read; def is the block's own value.
type FieldOverrideProvider interface {
	Get(ctx context.Context, block Block, name string, def any) (any, error)
}

// ProviderFunc adapts a function to FieldOverrideProvider.
type ProviderFunc func(ctx context.Context, block Block, name string, def any) (any, error)

// Get implements FieldOverrideProvider.
func (f ProviderFunc) Get(ctx context.Context, block Block, name string, def any) (any, error) {
	if f == nil {
		return def, nil
	}
	return f(ctx, block, name, def)
}

// OverrideProvider applies the overrides of the cohort active on ctx.
type OverrideProvider struct {
	Overrides *Overrides
}

var _ FieldOverrideProvider = OverrideProvider{}

// NewOverrideProvider builds a provider backed by overrides.
func NewOverrideProvider(overrides *Overrides) OverrideProvider {
	return OverrideProvider{Overrides: overrides}
}

// Get returns def unchanged when no cohort is active, otherwise the cohort's
// override for the field or def.
func (p OverrideProvider) Get(ctx context.Context, block Block, name string, def any) (any, error) {
	cohort, ok := Current(ctx)
	if !ok || p.Overrides == nil {
		return def, nil
	}
	return p.Overrides.Get(ctx, cohort, block, name, def)
}

// ProviderChain consults providers in order. Each provider is called with
// NotSet as its default; the first one returning something else wins.
type ProviderChain []FieldOverrideProvider

// Get implements FieldOverrideProvider.
func (c ProviderChain) Get(ctx context.Context, block Block, name string, def any) (any, error) {
	for _, provider := range c {
		if provider == nil {
			continue
		}
		value, err := provider.Get(ctx, block, name, NotSet)
		if err != nil {
			return nil, err
		}
		if _, unset := value.(notSet); !unset {
			return value, nil
		}
	}
	return def, nil
}
