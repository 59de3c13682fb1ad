// Package workflow holds the purchasing approval stages and answers which
// roles may act on a stage and which document statuses are valid there.
package workflow

import (
	"slices"

	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/models"
)

const (
	StageRequestCreation    models.StageID = 1
	StageDepartmentApproval models.StageID = 2
	StagePurchaseReview     models.StageID = 3
	StageFinanceApproval    models.StageID = 4
	StageReceiving          models.StageID = 5
	StageCompleted          models.StageID = 6
)

type Stage struct {
	ID       models.StageID          `json:"id"`
	Name     string                  `json:"name"`
	Roles    []models.UserRole       `json:"roles"`
	Statuses []models.DocumentStatus `json:"statuses"`
}

var stages = []Stage{
	{
		ID:       StageRequestCreation,
		Name:     "Request Creation",
		Roles:    []models.UserRole{models.RoleRequestor},
		Statuses: []models.DocumentStatus{models.StatusDraft, models.StatusReturned},
	},
	{
		ID:       StageDepartmentApproval,
		Name:     "Department Approval",
		Roles:    []models.UserRole{models.RoleDepartmentHead},
		Statuses: []models.DocumentStatus{models.StatusPending},
	},
	{
		ID:       StagePurchaseReview,
		Name:     "Purchase Review",
		Roles:    []models.UserRole{models.RolePurchaser},
		Statuses: []models.DocumentStatus{models.StatusPending},
	},
	{
		ID:       StageFinanceApproval,
		Name:     "Finance Approval",
		Roles:    []models.UserRole{models.RoleFinanceManager},
		Statuses: []models.DocumentStatus{models.StatusPending},
	},
	{
		ID:       StageReceiving,
		Name:     "Receiving",
		Roles:    []models.UserRole{models.RoleStoreKeeper, models.RolePurchaser},
		Statuses: []models.DocumentStatus{models.StatusApproved, models.StatusPartiallyReceived},
	},
	{
		ID:       StageCompleted,
		Name:     "Completed",
		Statuses: []models.DocumentStatus{models.StatusReceived, models.StatusClosed, models.StatusRejected},
	},
}

func clone(s Stage) Stage {
	s.Roles = slices.Clone(s.Roles)
	s.Statuses = slices.Clone(s.Statuses)
	return s
}

// Stages returns every stage in order.
func Stages() []Stage {
	out := make([]Stage, len(stages))
	for i, s := range stages {
		out[i] = clone(s)
	}
	return out
}

func StageByID(id models.StageID) (Stage, bool) {
	for _, s := range stages {
		if s.ID == id {
			return clone(s), true
		}
	}
	return Stage{}, false
}

// RolesForStage returns nil for unknown stages.
func RolesForStage(id models.StageID) []models.UserRole {
	s, ok := StageByID(id)
	if !ok {
		return nil
	}
	return s.Roles
}

func StatusesForStage(id models.StageID) []models.DocumentStatus {
	s, ok := StageByID(id)
	if !ok {
		return nil
	}
	return s.Statuses
}

// CanRoleActOnStage reports whether role may act on the stage. Admin may act
// on every stage that has at least one role; nobody acts on a stage without roles.
func CanRoleActOnStage(role models.UserRole, id models.StageID) bool {
	roles := RolesForStage(id)
	if len(roles) == 0 {
		return false
	}
	if role == models.RoleAdmin {
		return true
	}
	return slices.Contains(roles, role)
}

func IsValidStatusForStage(status models.DocumentStatus, id models.StageID) bool {
	return slices.Contains(StatusesForStage(id), status)
}

// StagesForRole lists the stages role may act on, in order.
func StagesForRole(role models.UserRole) []Stage {
	var out []Stage
	for _, s := range stages {
		if CanRoleActOnStage(role, s.ID) {
			out = append(out, clone(s))
		}
	}
	return out
}

// NextStage returns the stage after id. The completed stage has no successor.
func NextStage(id models.StageID) (Stage, bool) {
	for i, s := range stages {
		if s.ID == id && i+1 < len(stages) {
			return clone(stages[i+1]), true
		}
	}
	return Stage{}, false
}
