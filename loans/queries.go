package loans

import (
	"context"
	"strings"

	"equipment_loaner/apperr"
	"equipment_loaner/db"
	"equipment_loaner/models"
	"equipment_loaner/policy"

	"github.com/google/uuid"
)

// ListLoans scopes borrowers to their own loans regardless of the filter.
func (e *Engine) ListLoans(ctx context.Context, actor policy.Actor, f db.LoanFilter) (*db.PagedLoans, error) {
	if err := policy.Authorize(actor, policy.OpReadOwnLoans); err != nil {
		return nil, err
	}
	if !policy.Can(actor.Role, policy.OpReadAll) {
		f.BorrowerID = actor.ID
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.Validation("invalid loan status", map[string]string{"status": "loan_status"})
	}
	for field, id := range map[string]string{"borrowerId": f.BorrowerID, "itemId": f.ItemID} {
		if id != "" && uuid.Validate(id) != nil {
			return nil, apperr.Validation("invalid id filter", map[string]string{field: "uuid"})
		}
	}
	page, err := e.repo.ListLoans(ctx, f)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return page, nil
}

// GetLoan hides other borrowers' loans behind NotFound.
func (e *Engine) GetLoan(ctx context.Context, actor policy.Actor, loanID string) (*models.Loan, error) {
	if err := policy.Authorize(actor, policy.OpReadOwnLoans); err != nil {
		return nil, err
	}
	if err := knownID(loanID, "loan not found"); err != nil {
		return nil, err
	}
	l, err := e.repo.FindLoanByID(ctx, loanID)
	if err != nil {
		return nil, notFound(err, "loan not found")
	}
	if l.BorrowerID != actor.ID && !policy.Can(actor.Role, policy.OpReadAll) {
		return nil, apperr.NotFound("loan not found")
	}
	return l, nil
}

func (e *Engine) ListItems(ctx context.Context, actor policy.Actor, f db.ItemFilter) (*db.PagedItems, error) {
	if err := policy.Authorize(actor, policy.OpBrowseCatalog); err != nil {
		return nil, err
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.Validation("invalid item status", map[string]string{"status": "item_status"})
	}
	page, err := e.repo.ListItems(ctx, f)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return page, nil
}

// ListItemsWithLoans is the staff catalogue with each item's current borrower.
func (e *Engine) ListItemsWithLoans(ctx context.Context, actor policy.Actor, f db.ItemFilter) (*db.PagedAdminItems, error) {
	if err := policy.Authorize(actor, policy.OpReadAll); err != nil {
		return nil, err
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.Validation("invalid item status", map[string]string{"status": "item_status"})
	}
	page, err := e.repo.ListItemsWithCurrentLoan(ctx, f, e.Today())
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return page, nil
}

func (e *Engine) GetItem(ctx context.Context, actor policy.Actor, itemID string) (*models.Item, error) {
	if err := policy.Authorize(actor, policy.OpBrowseCatalog); err != nil {
		return nil, err
	}
	if err := knownID(itemID, msgItemNotFound); err != nil {
		return nil, err
	}
	it, err := e.repo.FindItemByID(ctx, itemID)
	if err != nil {
		return nil, notFound(err, msgItemNotFound)
	}
	return it, nil
}

func (e *Engine) MaintenanceHistory(ctx context.Context, actor policy.Actor, itemID string) ([]models.MaintenanceLog, error) {
	if err := policy.Authorize(actor, policy.OpReadAll); err != nil {
		return nil, err
	}
	if err := knownID(itemID, msgItemNotFound); err != nil {
		return nil, err
	}
	if _, err := e.repo.FindItemByID(ctx, itemID); err != nil {
		return nil, notFound(err, msgItemNotFound)
	}
	logs, err := e.repo.ListMaintenanceLogs(ctx, itemID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return logs, nil
}

func (e *Engine) ListUsers(ctx context.Context, actor policy.Actor, f db.UserFilter) (db.ListUsersResult, error) {
	if err := policy.Authorize(actor, policy.OpReadAll); err != nil {
		return db.ListUsersResult{}, err
	}
	res, err := e.repo.ListUsers(ctx, f)
	if err != nil {
		return db.ListUsersResult{}, apperr.Internal(err)
	}
	return res, nil
}

// GetUser lets anyone read their own account; others need read-all.
func (e *Engine) GetUser(ctx context.Context, actor policy.Actor, userID string) (*models.User, error) {
	if userID != actor.ID {
		if err := policy.Authorize(actor, policy.OpReadAll); err != nil {
			return nil, err
		}
	}
	if err := knownID(userID, msgUserNotFound); err != nil {
		return nil, err
	}
	u, err := e.repo.FindUserByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, msgUserNotFound)
	}
	return u, nil
}

// Categories and locations

type LookupInput struct {
	Name        string `json:"name" validate:"required,max=120"`
	Description string `json:"description" validate:"max=2000"`
	Address     string `json:"address" validate:"max=255"`
}

func (e *Engine) ListCategories(ctx context.Context, actor policy.Actor) ([]models.Category, error) {
	if err := policy.Authorize(actor, policy.OpBrowseCatalog); err != nil {
		return nil, err
	}
	cs, err := e.repo.ListCategories(ctx)
	return cs, apperr.Internal(err)
}

func (e *Engine) CreateCategory(ctx context.Context, actor policy.Actor, in LookupInput) (*models.Category, error) {
	if err := policy.Authorize(actor, policy.OpManageCatalog); err != nil {
		return nil, err
	}
	if err := e.check(in); err != nil {
		return nil, err
	}
	c := &models.Category{Name: strings.TrimSpace(in.Name), Description: in.Description}
	if err := e.repo.CreateCategory(ctx, c); err != nil {
		return nil, e.finish(persistErr(err, "category already exists"), "category create", "actor_id", actor.ID)
	}
	return c, e.finish(nil, "category created", "category_id", c.ID, "actor_id", actor.ID)
}

func (e *Engine) ListLocations(ctx context.Context, actor policy.Actor) ([]models.Location, error) {
	if err := policy.Authorize(actor, policy.OpBrowseCatalog); err != nil {
		return nil, err
	}
	ls, err := e.repo.ListLocations(ctx)
	return ls, apperr.Internal(err)
}

func (e *Engine) CreateLocation(ctx context.Context, actor policy.Actor, in LookupInput) (*models.Location, error) {
	if err := policy.Authorize(actor, policy.OpManageCatalog); err != nil {
		return nil, err
	}
	if err := e.check(in); err != nil {
		return nil, err
	}
	l := &models.Location{Name: strings.TrimSpace(in.Name), Description: in.Description, Address: in.Address}
	if err := e.repo.CreateLocation(ctx, l); err != nil {
		return nil, e.finish(persistErr(err, "location already exists"), "location create", "actor_id", actor.ID)
	}
	return l, e.finish(nil, "location created", "location_id", l.ID, "actor_id", actor.ID)
}
