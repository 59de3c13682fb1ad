package models

import "slices"

// Actor is the authenticated caller as seen by domain services.
type Actor struct {
	UserID        uint
	Name          string
	Role          UserRole
	BusinessUnits []string
	// SelectedUnit is empty when the user has not picked a unit.
	SelectedUnit string
}

// CanAccess reports whether the actor may see documents of the unit.
func (a Actor) CanAccess(unit string) bool {
	return a.Role == RoleAdmin || slices.Contains(a.BusinessUnits, unit)
}

// ScopeUnit resolves the unit a listing should be limited to. An explicit
// request wins; otherwise the selected unit applies. Admins may list across
// units with no selection.
func (a Actor) ScopeUnit(requested string) string {
	if requested != "" {
		return requested
	}
	return a.SelectedUnit
}
