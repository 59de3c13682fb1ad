package models

import "time"

type UserRole string

const (
	RoleAdmin               UserRole = "admin"
	RoleRequestor           UserRole = "requestor"
	RoleDepartmentHead      UserRole = "department_head"
	RolePurchaser           UserRole = "purchaser"
	RoleFinanceManager      UserRole = "finance_manager"
	RoleStoreKeeper         UserRole = "store_keeper"
	RoleInventoryController UserRole = "inventory_controller"
)

var allRoles = []UserRole{
	RoleAdmin,
	RoleRequestor,
	RoleDepartmentHead,
	RolePurchaser,
	RoleFinanceManager,
	RoleStoreKeeper,
	RoleInventoryController,
}

// Roles returns every known role.
func Roles() []UserRole {
	out := make([]UserRole, len(allRoles))
	copy(out, allRoles)
	return out
}

func (r UserRole) Valid() bool {
	for _, known := range allRoles {
		if r == known {
			return true
		}
	}
	return false
}

type User struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Name          string         `gorm:"size:100;not null" json:"name"`
	Email         string         `gorm:"size:100;uniqueIndex;not null" json:"email"`
	PasswordHash  string         `gorm:"size:255;not null" json:"-"`
	Role          UserRole       `gorm:"size:32;not null;index" json:"role"`
	Department    string         `gorm:"size:100" json:"department"`
	BusinessUnits []BusinessUnit `gorm:"many2many:user_business_units" json:"business_units"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// BusinessUnitCodes lists the codes of the units the user belongs to.
func (u *User) BusinessUnitCodes() []string {
	codes := make([]string, 0, len(u.BusinessUnits))
	for _, bu := range u.BusinessUnits {
		codes = append(codes, bu.Code)
	}
	return codes
}

// HasBusinessUnit reports whether the user is a member of the unit with the given code.
func (u *User) HasBusinessUnit(code string) bool {
	for _, bu := range u.BusinessUnits {
		if bu.Code == code {
			return true
		}
	}
	return false
}
