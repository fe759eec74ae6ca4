// Package container provides the registration catalog, the hierarchical
// lifetime scopes and the Service Provider system the rest of the framework
// is composed with.
//
// # Overview
//
// Services are registered under a ServiceKey: a base name plus up to two
// type arguments. Keys compare structurally, and an open key (OpenKey)
// stands for every closed key of its base, which is how generic
// registrations such as "a behavior for every request pair" are expressed.
//
// Because Go has no runtime constructor reflection, auto-wiring is replaced
// by explicit factory functions that resolve their own dependencies.
//
// # Container Lifecycle
//
//  1. Create: cat := container.NewCatalog()
//  2. Register services and providers
//  3. Validate: cat.Validate()       (recommended, checks declared dependencies)
//  4. Build:    root := container.NewRootScope(cat)   (freezes the catalog)
//  5. Boot:     registry.Boot(ctx, root)
//  6. Per unit of work: child, _ := root.BeginChild(); defer child.Dispose()
//
// # Lifetimes
//
//	// Transient: new instance every Resolve
//	cat.Bind(key, func(a container.Activation) (any, error) { return &Foo{}, nil })
//
//	// PerScope: one instance per scope
//	cat.Scoped(key, newUnitOfWork)
//
//	// Singleton: one instance, owned by the root scope
//	cat.Singleton(key, newCache)
//
//	// Pre-built value, never disposed by the container
//	cat.Instance(container.Key[*config.Config](), cfg)
//
// # Resolving
//
//	// Untyped
//	raw, err := scope.Resolve(key)
//
//	// Generic (preferred, no type assertion required)
//	cfg, err := container.Resolve[*config.Config](scope)
//
//	// Collections, in registration order
//	all, err := container.ResolveAll[pipeline.Behavior](scope, pipeline.BehaviorKey(reqT, resT))
//
// # Bulk registration
//
// A static list of Descriptors replaces type scanning:
//
//	cat.RegisterAll(discovered, container.BaseOf(pipeline.HandlerBase), container.PerScope)
//
// # Disposal
//
// Instances implementing Disposer or io.Closer are disposed with the scope
// that built them, in reverse construction order. Singletons belong to the
// root scope.
//
// # Errors
//
// Wiring failures are *errs.ConfigError values (NOT_REGISTERED,
// CIRCULAR_DEPENDENCY, SCOPE_DISPOSED, ...); errors returned by factories
// pass through unchanged.
package container
