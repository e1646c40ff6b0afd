package domain

import "time"

// Action is the kind of work a plan unit performs.
type Action string

const (
	ActionInstall Action = "install"
	ActionUpgrade Action = "upgrade"
	ActionRemove  Action = "remove"
)

// Unit is one atomic install/upgrade/remove action within a resolved plan.
// For upgrades, Previous records the version being replaced.
type Unit struct {
	Action   Action
	Name     string
	Version  Version
	Previous Version
}

// Plan is an ordered sequence of units. For install/upgrade a unit never
// precedes the units providing its dependencies; for remove, units run in
// reverse dependency order. A plan is immutable once produced.
type Plan struct {
	units []Unit
}

// NewPlan creates a plan from the given units. The slice is copied so the
// resolver's ordering decisions cannot be mutated afterwards.
func NewPlan(units []Unit) Plan {
	p := Plan{units: make([]Unit, len(units))}
	copy(p.units, units)
	return p
}

// Units returns a copy of the plan's units in execution order.
func (p Plan) Units() []Unit {
	units := make([]Unit, len(p.units))
	copy(units, p.units)
	return units
}

// Len returns the number of units in the plan.
func (p Plan) Len() int {
	return len(p.units)
}

// Empty reports whether the plan has no work to do.
func (p Plan) Empty() bool {
	return len(p.units) == 0
}

// InstalledPackage is the durable record of one package installed on the
// host. The installed-set store is its sole writer.
type InstalledPackage struct {
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Manifest    Manifest  `json:"manifest"`
	Files       []string  `json:"files,omitempty"`
	InstalledAt time.Time `json:"installed_at"`
}

// ParsedVersion returns the record's version as a Version.
func (p InstalledPackage) ParsedVersion() Version {
	v, _ := ParseVersion(p.Version)
	return v
}
