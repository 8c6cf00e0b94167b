// Package availability holds the rules tying an item's status to its loans.
//
// An item is loaned exactly when one active loan references it. Every other
// status means no active loan exists. The engine consults these rules before
// mutating anything; the Auditor checks the stored data against them.
package availability

import (
	"fmt"

	"equipment_loaner/apperr"
	"equipment_loaner/models"
)

// ExpectedStatus returns the status an item must have given its loan state,
// and whether current is consistent with it. A non-loaned item keeps its own
// status (available, maintenance, faulty, retired).
func ExpectedStatus(current models.ItemStatus, hasActiveLoan bool) (models.ItemStatus, bool) {
	if hasActiveLoan {
		return models.ItemLoaned, current == models.ItemLoaned
	}
	if current == models.ItemLoaned {
		return models.ItemAvailable, false
	}
	return current, true
}

// CheckRequestable fails with Conflict unless the item can be lent right now.
func CheckRequestable(item *models.Item) error {
	if item.Status != models.ItemAvailable {
		return apperr.Conflict(fmt.Sprintf("item is not available (status %s)", item.Status))
	}
	return nil
}

// CheckEdit validates a direct status edit. Loaned is reachable only through
// loan transitions and maintenance only through the maintenance toggles, so
// edits may neither enter nor leave either of them.
func CheckEdit(current, requested models.ItemStatus) error {
	if !requested.Valid() {
		return apperr.Validation("invalid item status", map[string]string{"status": "item_status"})
	}
	if current == requested {
		return nil
	}
	switch {
	case current == models.ItemLoaned:
		return apperr.Conflict("status of a loaned item cannot be edited; return the loan instead")
	case requested == models.ItemLoaned:
		return apperr.Conflict("items become loaned only through an approved loan")
	case current == models.ItemMaintenance:
		return apperr.Conflict("item is in maintenance; mark it available instead")
	case requested == models.ItemMaintenance:
		return apperr.Conflict("use mark-maintenance to take an item out of service")
	}
	return nil
}
