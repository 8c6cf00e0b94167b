// Package policy decides which role may perform which operation.
//
// Authentication (who the actor is) happens in the HTTP middleware; this
// package only answers authorization for an already resolved actor.
package policy

import (
	"fmt"

	"equipment_loaner/apperr"
	"equipment_loaner/models"
)

// Operation is a protected action.
type Operation int

const (
	OpRequestLoan Operation = iota
	OpStaffCreateLoan
	OpApproveLoan
	OpDenyLoan
	OpReturnItem
	OpMarkMaintenance
	OpManageItems
	OpDeleteItem
	OpCreateBorrower
	OpManageUsers
	OpReadOwnLoans
	OpReadAll
	OpBrowseCatalog
	OpManageCatalog
)

var opNames = map[Operation]string{
	OpRequestLoan:     "request_loan",
	OpStaffCreateLoan: "staff_create_loan",
	OpApproveLoan:     "approve_loan",
	OpDenyLoan:        "deny_loan",
	OpReturnItem:      "return_item",
	OpMarkMaintenance: "mark_maintenance",
	OpManageItems:     "manage_items",
	OpDeleteItem:      "delete_item",
	OpCreateBorrower:  "create_borrower",
	OpManageUsers:     "manage_users",
	OpReadOwnLoans:    "read_own_loans",
	OpReadAll:         "read_all",
	OpBrowseCatalog:   "browse_catalog",
	OpManageCatalog:   "manage_catalog",
}

func (o Operation) String() string {
	if n, ok := opNames[o]; ok {
		return n
	}
	return fmt.Sprintf("operation(%d)", int(o))
}

// Actor is the authenticated caller of an engine operation.
type Actor struct {
	ID   string
	Role models.Role
}

func (a Actor) IsAdmin() bool { return a.Role == models.RoleAdmin }

// Privileged is true for admin and staff.
func (a Actor) Privileged() bool { return a.Role == models.RoleAdmin || a.Role == models.RoleStaff }

var (
	everyone   = []models.Role{models.RoleAdmin, models.RoleStaff, models.RoleBorrower}
	privileged = []models.Role{models.RoleAdmin, models.RoleStaff}
	adminOnly  = []models.Role{models.RoleAdmin}
)

var table = map[Operation][]models.Role{
	OpRequestLoan:     everyone,
	OpStaffCreateLoan: privileged,
	OpApproveLoan:     adminOnly,
	OpDenyLoan:        adminOnly,
	OpReturnItem:      privileged,
	OpMarkMaintenance: privileged,
	OpManageItems:     privileged,
	OpDeleteItem:      adminOnly,
	OpCreateBorrower:  privileged,
	OpManageUsers:     adminOnly,
	OpReadOwnLoans:    everyone,
	OpReadAll:         privileged,
	OpBrowseCatalog:   everyone,
	OpManageCatalog:   adminOnly,
}

// Can reports whether role may perform op. Unknown roles and operations are denied.
func Can(role models.Role, op Operation) bool {
	for _, r := range table[op] {
		if r == role {
			return true
		}
	}
	return false
}

// Authorize returns a Forbidden error when the actor may not perform op.
func Authorize(actor Actor, op Operation) error {
	if actor.ID == "" {
		return apperr.Unauthenticated("authentication required")
	}
	if !Can(actor.Role, op) {
		return apperr.Forbidden(fmt.Sprintf("role %q may not %s", actor.Role, op))
	}
	return nil
}
