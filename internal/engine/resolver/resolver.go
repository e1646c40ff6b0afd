// Package resolver computes ordered, validated plans for install, remove
// and upgrade operations over the repository index and the installed set.
package resolver

import (
	"slices"
	"strings"

	"go.trai.ch/pms/internal/core/domain"
	"go.trai.ch/zerr"
)

// Resolver builds plans from a repository index and a snapshot of the
// installed set. It never mutates either.
type Resolver struct {
	index     *domain.Index
	installed map[string]domain.InstalledPackage
}

// New creates a Resolver over the given index and installed snapshot.
func New(index *domain.Index, installed []domain.InstalledPackage) *Resolver {
	byName := make(map[string]domain.InstalledPackage, len(installed))
	for _, rec := range installed {
		byName[rec.Name] = rec
	}
	return &Resolver{index: index, installed: byName}
}

// Install resolves an install request, in request order. A request is a
// package name, optionally pinned to one version as "name=version"; a
// pinned request resolves against the index with an exact constraint. A
// name already installed at the requested (or best available) version is
// skipped, so re-installing yields an empty plan; a name installed at an
// older version becomes an upgrade unit.
func (r *Resolver) Install(requests []string) (domain.Plan, error) {
	var targets []domain.Entry
	for _, request := range requests {
		want, err := parseRequest(request)
		if err != nil {
			return domain.Plan{}, err
		}

		entry, ok := r.index.LookupBest(want)
		if !ok {
			if _, installed := r.installed[want.Name]; installed && !want.Constraint {
				continue
			}
			return domain.Plan{}, zerr.With(domain.ErrPackageNotFound, "package", request)
		}

		if rec, installed := r.installed[want.Name]; installed &&
			entry.Version.Compare(rec.ParsedVersion()) <= 0 {
			continue
		}
		targets = append(targets, entry)
	}

	return r.resolve(targets)
}

// parseRequest interprets an install argument. "name" is unconstrained,
// "name=version" pins the exact version.
func parseRequest(text string) (domain.Dependency, error) {
	name, pin, pinned := strings.Cut(text, "=")
	if !pinned {
		return domain.Dependency{Name: name}, nil
	}
	if name == "" || pin == "" {
		return domain.Dependency{}, zerr.With(domain.ErrMalformedDependency, "request", text)
	}
	version, err := domain.ParseVersion(pin)
	if err != nil {
		return domain.Dependency{}, zerr.With(err, "request", text)
	}
	return domain.Dependency{
		Name:       name,
		Op:         domain.OpEqual,
		Version:    version,
		Constraint: true,
	}, nil
}

// Upgrade resolves an upgrade of every installed package for which the
// index offers a strictly greater version. Newly required dependencies of
// the upgraded versions join the plan.
func (r *Resolver) Upgrade() (domain.Plan, error) {
	names := make([]string, 0, len(r.installed))
	for name := range r.installed {
		names = append(names, name)
	}
	slices.Sort(names)

	var targets []domain.Entry
	for _, name := range names {
		entry, ok := r.index.LookupBest(domain.Dependency{Name: name})
		if !ok {
			continue
		}
		if entry.Version.Compare(r.installed[name].ParsedVersion()) > 0 {
			targets = append(targets, entry)
		}
	}

	return r.resolve(targets)
}

// Remove resolves a removal request. Without force, installed packages
// depending on a requested package block the removal. With force, the
// transitive dependents join the plan; removals are ordered so that
// dependents precede their dependencies.
func (r *Resolver) Remove(names []string, force bool) (domain.Plan, error) {
	set := make(map[string]bool, len(names))
	for _, name := range names {
		if _, ok := r.installed[name]; !ok {
			return domain.Plan{}, zerr.With(domain.ErrNotInstalled, "package", name)
		}
		set[name] = true
	}

	dependents := r.dependentsGraph()

	if !force {
		var blockers []string
		for name := range set {
			for _, dep := range dependents[name] {
				if !set[dep] && !slices.Contains(blockers, dep) {
					blockers = append(blockers, dep)
				}
			}
		}
		if len(blockers) > 0 {
			slices.Sort(blockers)
			return domain.Plan{}, zerr.With(domain.ErrDependentsBlockRemoval,
				"dependents", strings.Join(blockers, ", "),
			)
		}
	} else {
		// Cascade: pull in everything that transitively depends on the
		// requested set.
		queue := make([]string, 0, len(set))
		for name := range set {
			queue = append(queue, name)
		}
		for len(queue) > 0 {
			name := queue[0]
			queue = queue[1:]
			for _, dep := range dependents[name] {
				if !set[dep] {
					set[dep] = true
					queue = append(queue, dep)
				}
			}
		}
	}

	return r.orderRemovals(set)
}

// dependentsGraph maps each installed package name to the installed
// packages whose manifest dependency on it is satisfied by the installed
// version.
func (r *Resolver) dependentsGraph() map[string][]string {
	graph := make(map[string][]string)
	for name, rec := range r.installed {
		deps, err := rec.Manifest.Dependencies()
		if err != nil {
			// Store records passed validation on commit; an unparsable
			// dependency here cannot block anything.
			continue
		}
		for _, dep := range deps {
			target, ok := r.installed[dep.Name]
			if !ok || !dep.SatisfiedBy(target.ParsedVersion()) {
				continue
			}
			graph[dep.Name] = append(graph[dep.Name], name)
		}
	}
	for name := range graph {
		slices.Sort(graph[name])
	}
	return graph
}

// orderRemovals emits remove units in reverse dependency order: a package
// is removed before anything it depends on.
func (r *Resolver) orderRemovals(set map[string]bool) (domain.Plan, error) {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	slices.Sort(names)

	// Topological sort, dependencies first, then reversed.
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(names))
	var order []string

	var visit func(name string)
	visit = func(name string) {
		color[name] = gray
		deps, _ := r.installed[name].Manifest.Dependencies()
		for _, dep := range deps {
			if set[dep.Name] && color[dep.Name] == white {
				visit(dep.Name)
			}
		}
		color[name] = black
		order = append(order, name)
	}
	for _, name := range names {
		if color[name] == white {
			visit(name)
		}
	}

	units := make([]domain.Unit, 0, len(order))
	for i := len(order) - 1; i >= 0; i-- {
		name := order[i]
		units = append(units, domain.Unit{
			Action:  domain.ActionRemove,
			Name:    name,
			Version: r.installed[name].ParsedVersion(),
		})
	}
	return domain.NewPlan(units), nil
}

// frame is one node of the iterative depth-first traversal.
type frame struct {
	entry domain.Entry
	deps  []domain.Dependency
	next  int
}

// resolve walks the dependency graph of the target entries with explicit
// color marking: white = unseen, gray = on the current path, black = done.
// Hitting a gray node is a cycle; units are emitted in postorder so
// dependencies always precede their dependents.
func (r *Resolver) resolve(targets []domain.Entry) (domain.Plan, error) {
	const (
		white = iota
		gray
		black
	)

	color := make(map[string]int)
	chosen := make(map[string]domain.Entry)
	var units []domain.Unit

	for _, target := range targets {
		if color[target.Name] == black {
			continue
		}

		stack := []frame{newFrame(target)}
		color[target.Name] = gray

		for len(stack) > 0 {
			top := &stack[len(stack)-1]

			if top.next >= len(top.deps) {
				// All dependencies handled; emit the unit.
				color[top.entry.Name] = black
				chosen[top.entry.Name] = top.entry
				units = append(units, r.unitFor(top.entry))
				stack = stack[:len(stack)-1]
				continue
			}

			dep := top.deps[top.next]
			top.next++

			if r.satisfiedByInstalled(dep) {
				continue
			}

			if prev, ok := chosen[dep.Name]; ok {
				if !dep.SatisfiedBy(prev.Version) {
					return domain.Plan{}, zerr.With(
						zerr.With(domain.ErrUnresolvedDependency, "dependency", dep.String()),
						"selected", prev.Version.String(),
					)
				}
				continue
			}

			if color[dep.Name] == gray {
				return domain.Plan{}, zerr.With(domain.ErrDependencyCycle,
					"cycle", cyclePath(stack, dep.Name),
				)
			}

			next, ok := r.index.LookupBest(dep)
			if !ok {
				return domain.Plan{}, zerr.With(domain.ErrUnresolvedDependency,
					"dependency", dep.String(),
				)
			}

			color[next.Name] = gray
			stack = append(stack, newFrame(next))
		}
	}

	return domain.NewPlan(units), nil
}

func newFrame(entry domain.Entry) frame {
	deps, _ := entry.Manifest.Dependencies()
	return frame{entry: entry, deps: deps}
}

// satisfiedByInstalled reports whether an installed package already
// satisfies the specifier, in which case resolution skips it.
func (r *Resolver) satisfiedByInstalled(dep domain.Dependency) bool {
	rec, ok := r.installed[dep.Name]
	return ok && dep.SatisfiedBy(rec.ParsedVersion())
}

// unitFor decides between an install and an upgrade unit for an entry.
func (r *Resolver) unitFor(entry domain.Entry) domain.Unit {
	if prev, ok := r.installed[entry.Name]; ok {
		return domain.Unit{
			Action:   domain.ActionUpgrade,
			Name:     entry.Name,
			Version:  entry.Version,
			Previous: prev.ParsedVersion(),
		}
	}
	return domain.Unit{
		Action:  domain.ActionInstall,
		Name:    entry.Name,
		Version: entry.Version,
	}
}

// cyclePath renders the names on the traversal stack from the first
// occurrence of name, e.g. "a -> b -> a".
func cyclePath(stack []frame, name string) string {
	start := 0
	for i, f := range stack {
		if f.entry.Name == name {
			start = i
			break
		}
	}

	var b strings.Builder
	for _, f := range stack[start:] {
		b.WriteString(f.entry.Name)
		b.WriteString(" -> ")
	}
	b.WriteString(name)
	return b.String()
}
