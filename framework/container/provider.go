package container

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/km-arc/go-bootstrap/framework/errs"
)

// ── ServiceProvider interface ─────────────────────────────────────────────────

// ServiceProvider groups related registrations.
//
// Register runs during composition, while the catalog is still open. Boot
// runs once the catalog is frozen and the root scope exists, making it safe
// to resolve other services.
//
//	type MailProvider struct{ container.BaseProvider }
//
//	func (p *MailProvider) Register(cat *container.Catalog) error {
//	    _, err := container.RegisterFunc(cat, container.Singleton, func(a container.Activation) (*Mailer, error) {
//	        cfg, err := container.Resolve[*config.Config](a)
//	        if err != nil {
//	            return nil, err
//	        }
//	        return NewMailer(cfg), nil
//	    })
//	    return err
//	}
//
//	func (p *MailProvider) Boot(ctx context.Context, root *container.Scope) error {
//	    _, err := container.Resolve[*Mailer](root) // warm the singleton
//	    return err
//	}
type ServiceProvider interface {
	// Register adds registrations to the catalog.
	// Do NOT resolve anything here; use Boot for that.
	Register(cat *Catalog) error

	// Boot is called after every provider is registered and the root scope
	// is built.
	Boot(ctx context.Context, root *Scope) error

	// Provides lists the keys Register is expected to add. The registry
	// reports any that are missing afterwards. Return nil to skip the check.
	Provides() []ServiceKey
}

// ── BaseProvider ──────────────────────────────────────────────────────────────

// BaseProvider is an embeddable struct with no-op Boot and Provides.
// Embed it in your provider and only override what you need.
//
//	type MyProvider struct{ container.BaseProvider }
//	func (p *MyProvider) Register(cat *container.Catalog) error { ... }
type BaseProvider struct{}

func (p *BaseProvider) Boot(context.Context, *Scope) error { return nil }
func (p *BaseProvider) Provides() []ServiceKey             { return nil }

// ── ProviderRegistry ──────────────────────────────────────────────────────────

// ProviderRegistry runs the two phases of a set of ServiceProviders against
// one catalog.
type ProviderRegistry struct {
	catalog    *Catalog
	providers  []ServiceProvider
	registered map[ServiceProvider]bool
	booted     bool
}

// NewProviderRegistry creates a registry bound to cat.
func NewProviderRegistry(cat *Catalog) *ProviderRegistry {
	return &ProviderRegistry{
		catalog:    cat,
		registered: make(map[ServiceProvider]bool),
	}
}

// Register calls the provider's Register method. Registering the same
// provider twice is a no-op. Providers cannot be added after Boot since the
// catalog is frozen by then.
func (r *ProviderRegistry) Register(provider ServiceProvider) error {
	if r.registered[provider] {
		return nil
	}
	if r.booted || r.catalog.Frozen() {
		return errs.CatalogFrozen(fmt.Sprintf("%T", provider))
	}
	if err := provider.Register(r.catalog); err != nil {
		return fmt.Errorf("register %T: %w", provider, err)
	}
	r.registered[provider] = true
	r.providers = append(r.providers, provider)

	var err error
	for _, key := range provider.Provides() {
		if !r.catalog.Has(key) {
			missing := errs.NotRegistered(key.String())
			missing.Message = fmt.Sprintf("not registered by %T", provider)
			err = multierr.Append(err, missing)
		}
	}
	return err
}

// Boot calls Boot on every provider in registration order, stopping at the
// first failure. Subsequent calls are no-ops.
func (r *ProviderRegistry) Boot(ctx context.Context, root *Scope) error {
	if r.booted {
		return nil
	}
	r.booted = true
	for _, provider := range r.providers {
		if err := provider.Boot(ctx, root); err != nil {
			return fmt.Errorf("boot %T: %w", provider, err)
		}
	}
	return nil
}

// Booted returns true if Boot() has been called.
func (r *ProviderRegistry) Booted() bool { return r.booted }

// Providers returns all registered providers.
func (r *ProviderRegistry) Providers() []ServiceProvider { return r.providers }
