package container

import (
	"go.uber.org/multierr"

	"github.com/km-arc/go-bootstrap/framework/errs"
)

// Validate eagerly checks the declared dependency graph: every declared
// dependency must have a registration and the graph must be acyclic. All
// problems are reported together. Dependencies a factory resolves without
// declaring them are still checked lazily at resolution time.
func (c *Catalog) Validate() error {
	regs := c.Registrations()

	var err error
	for _, reg := range regs {
		for _, dep := range reg.Dependencies {
			if !c.Has(dep) {
				missing := errs.NotRegistered(dep.String())
				missing.Message = "no registration, required by " + reg.String()
				err = multierr.Append(err, missing)
			}
		}
	}

	return multierr.Append(err, c.detectCycles(regs))
}

// detectCycles walks the declared graph depth-first, reporting each cycle
// once.
func (c *Catalog) detectCycles(regs []*Registration) error {
	const (
		unvisited = iota
		visiting
		visited
	)

	var (
		err   error
		state = make(map[*Registration]int, len(regs))
		path  []*Registration
		visit func(reg *Registration)
	)

	visit = func(reg *Registration) {
		switch state[reg] {
		case visited:
			return
		case visiting:
			cycle := make([]string, 0, len(path)+1)
			start := 0
			for i, p := range path {
				if p == reg {
					start = i
					break
				}
			}
			for _, p := range path[start:] {
				cycle = append(cycle, p.Key.String())
			}
			cycle = append(cycle, reg.Key.String())
			err = multierr.Append(err, errs.Circular(cycle))
			return
		}

		state[reg] = visiting
		path = append(path, reg)
		for _, dep := range reg.Dependencies {
			if next, ok := c.Lookup(dep); ok {
				visit(next)
			}
		}
		path = path[:len(path)-1]
		state[reg] = visited
	}

	for _, reg := range regs {
		if state[reg] == unvisited {
			visit(reg)
		}
	}
	return err
}
