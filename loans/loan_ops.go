package loans

import (
	"context"
	"errors"
	"strings"
	"time"

	"equipment_loaner/apperr"
	"equipment_loaner/availability"
	"equipment_loaner/db"
	"equipment_loaner/models"
	"equipment_loaner/policy"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	msgPendingNotFound = "pending loan not found"
	msgActiveNotFound  = "active loan not found"
	msgNoLongerAvail   = "item is no longer available"
	msgItemNotFound    = "item not found"
	msgUserNotFound    = "user not found"
)

type RequestLoanInput struct {
	ItemID         string    `json:"itemId" validate:"required,uuid"`
	ExpectedReturn time.Time `json:"expectedReturn" validate:"required"`
	Reason         string    `json:"reason" validate:"max=2000"`
}

type StaffCreateLoanInput struct {
	ItemID         string    `json:"itemId" validate:"required,uuid"`
	BorrowerID     string    `json:"borrowerId" validate:"required_without=BorrowerEmail,omitempty,uuid"`
	BorrowerEmail  string    `json:"borrowerEmail" validate:"omitempty,email"`
	ExpectedReturn time.Time `json:"expectedReturn" validate:"required"`
	Reason         string    `json:"reason" validate:"max=2000"`
	AutoApprove    bool      `json:"autoApprove"`
}

type ReturnInput struct {
	Condition  *models.Condition `json:"returnCondition" validate:"omitempty,return_condition"`
	Notes      string            `json:"returnNotes" validate:"max=4000"`
	Inspection map[string]any    `json:"inspection"`
}

// newLoan carries what both request paths share.
type newLoan struct {
	itemID      string
	borrower    *models.User
	expected    time.Time
	reason      string
	origin      models.LoanOrigin
	createdBy   *string
	autoApprove bool
	approver    string
}

func (e *Engine) checkExpected(expected time.Time) (time.Time, error) {
	d := models.Day(expected)
	if d.Before(e.Today()) {
		return d, apperr.Validation("expected return date is in the past",
			map[string]string{"expectedReturn": "gte_today"})
	}
	return d, nil
}

// RequestLoan creates a pending loan for the actor.
//
// Business rules:
//   - the item exists and is available
//   - the actor's account is active
//   - the actor has no pending or active loan of the same item
//   - expected return is today or later
func (e *Engine) RequestLoan(ctx context.Context, actor policy.Actor, in RequestLoanInput) (*models.Loan, error) {
	if err := policy.Authorize(actor, policy.OpRequestLoan); err != nil {
		return nil, err
	}
	if err := e.check(in); err != nil {
		return nil, err
	}
	expected, err := e.checkExpected(in.ExpectedReturn)
	if err != nil {
		return nil, err
	}

	var loan *models.Loan
	err = e.repo.InTx(ctx, func(tx *db.Repo) error {
		borrower, err := tx.LockUser(ctx, actor.ID)
		if err != nil {
			return notFound(err, msgUserNotFound)
		}
		if !borrower.Active {
			return apperr.NotFound(msgUserNotFound)
		}
		loan, err = e.openLoan(ctx, tx, EventRequest, newLoan{
			itemID:   in.ItemID,
			borrower: borrower,
			expected: expected,
			reason:   strings.TrimSpace(in.Reason),
			origin:   models.OriginUser,
		})
		return err
	})
	if err != nil {
		return nil, e.finish(err, "loan request", "item_id", in.ItemID, "actor_id", actor.ID)
	}
	return loan, e.finish(nil, "loan requested", "loan_id", loan.ID, "item_id", loan.ItemID, "actor_id", actor.ID)
}

// StaffCreateLoan records a loan on behalf of a borrower. With AutoApprove the
// loan starts active and the item is checked out in the same transaction.
func (e *Engine) StaffCreateLoan(ctx context.Context, actor policy.Actor, in StaffCreateLoanInput) (*models.Loan, error) {
	if err := policy.Authorize(actor, policy.OpStaffCreateLoan); err != nil {
		return nil, err
	}
	if err := e.check(in); err != nil {
		return nil, err
	}
	expected, err := e.checkExpected(in.ExpectedReturn)
	if err != nil {
		return nil, err
	}

	event := EventStaffCreate
	if in.AutoApprove {
		event = EventStaffAutoApprove
	}

	var loan *models.Loan
	err = e.repo.InTx(ctx, func(tx *db.Repo) error {
		borrower, err := e.resolveBorrower(ctx, tx, in.BorrowerID, in.BorrowerEmail)
		if err != nil {
			return err
		}
		createdBy := actor.ID
		loan, err = e.openLoan(ctx, tx, event, newLoan{
			itemID:      in.ItemID,
			borrower:    borrower,
			expected:    expected,
			reason:      strings.TrimSpace(in.Reason),
			origin:      models.OriginStaff,
			createdBy:   &createdBy,
			autoApprove: in.AutoApprove,
			approver:    actor.ID,
		})
		return err
	})
	if err != nil {
		return nil, e.finish(err, "staff loan", "item_id", in.ItemID, "actor_id", actor.ID)
	}
	return loan, e.finish(nil, "staff loan created", "loan_id", loan.ID, "item_id", loan.ItemID,
		"actor_id", actor.ID, "status", loan.Status)
}

// resolveBorrower looks up by id first, then by email among active users.
// The borrower row stays locked until the loan is written so a concurrent
// deactivation either sees the loan or is seen by it.
func (e *Engine) resolveBorrower(ctx context.Context, tx *db.Repo, id, email string) (*models.User, error) {
	const msg = "borrower not found"
	if id == "" {
		u, err := tx.FindActiveUserByEmail(ctx, email)
		if err != nil {
			return nil, notFound(err, "no active user with that email")
		}
		id = u.ID
	}
	u, err := tx.LockUser(ctx, id)
	if err != nil {
		return nil, notFound(err, msg)
	}
	if !u.Active {
		return nil, apperr.NotFound(msg)
	}
	return u, nil
}

// openLoan runs inside a transaction: lock the item, check it, insert the loan.
func (e *Engine) openLoan(ctx context.Context, tx *db.Repo, event Event, nl newLoan) (*models.Loan, error) {
	to, err := Next(StatusNone, event)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	item, err := tx.LockItem(ctx, nl.itemID)
	if err != nil {
		return nil, notFound(err, msgItemNotFound)
	}
	if err := availability.CheckRequestable(item); err != nil {
		return nil, err
	}

	n, err := tx.CountOpenLoans(ctx, item.ID, nl.borrower.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if n > 0 {
		return nil, apperr.Conflict("borrower already has an open loan for this item")
	}

	today := e.Today()
	loan := &models.Loan{
		ID:             uuid.NewString(),
		ItemID:         item.ID,
		BorrowerID:     nl.borrower.ID,
		Status:         to,
		RequestDate:    today,
		ExpectedReturn: nl.expected,
		Reason:         nl.reason,
		Origin:         nl.origin,
		CreatedBy:      nl.createdBy,
	}

	if to == models.LoanActive {
		approver := nl.approver
		loan.ApprovedBy = &approver
		loan.ApprovedDate = &today
		loan.CheckoutDate = &today
		if err := tx.SetItemStatus(ctx, item.ID, models.ItemAvailable, models.ItemLoaned, nil); err != nil {
			return nil, staleItem(err)
		}
	}

	if err := tx.CreateLoan(ctx, loan); err != nil {
		return nil, persistErr(err, "item already has an active loan")
	}
	return loan, nil
}

func staleItem(err error) error {
	if errors.Is(err, db.ErrStale) {
		return apperr.Conflict(msgNoLongerAvail)
	}
	return apperr.Internal(err)
}

// ApproveLoan moves a pending loan to active and checks the item out.
//
// Business rules:
//   - the loan exists and is pending, otherwise NotFound
//   - the item is still available at approval time, re-read under a row lock
func (e *Engine) ApproveLoan(ctx context.Context, actor policy.Actor, loanID string) (*models.Loan, error) {
	if err := policy.Authorize(actor, policy.OpApproveLoan); err != nil {
		return nil, err
	}
	if err := knownID(loanID, msgPendingNotFound); err != nil {
		return nil, err
	}

	var out *models.Loan
	err := e.repo.InTx(ctx, func(tx *db.Repo) error {
		loan, err := tx.FindLoanWithStatus(ctx, loanID, models.LoanPending)
		if err != nil {
			return notFound(err, msgPendingNotFound)
		}
		to, err := Next(loan.Status, EventApprove)
		if err != nil {
			return apperr.Conflict(err.Error())
		}

		item, err := tx.LockItem(ctx, loan.ItemID)
		if err != nil {
			return notFound(err, msgItemNotFound)
		}
		if availability.CheckRequestable(item) != nil {
			return apperr.Conflict(msgNoLongerAvail)
		}

		today := e.Today()
		if err := tx.TransitionLoan(ctx, loan.ID, models.LoanPending, map[string]any{
			"status":        to,
			"approved_by":   actor.ID,
			"approved_date": today,
			"checkout_date": today,
		}); err != nil {
			if errors.Is(err, db.ErrStale) {
				return apperr.NotFound(msgPendingNotFound)
			}
			return persistErr(err, msgNoLongerAvail)
		}
		if err := tx.SetItemStatus(ctx, item.ID, models.ItemAvailable, models.ItemLoaned, nil); err != nil {
			return staleItem(err)
		}

		out, err = tx.FindLoanByID(ctx, loan.ID)
		return apperr.Internal(err)
	})
	if err != nil {
		return nil, e.finish(err, "loan approve", "loan_id", loanID, "actor_id", actor.ID)
	}
	return out, e.finish(nil, "loan approved", "loan_id", out.ID, "item_id", out.ItemID, "actor_id", actor.ID)
}

// DenyLoan closes a pending loan. The item is not touched.
func (e *Engine) DenyLoan(ctx context.Context, actor policy.Actor, loanID, reason string) (*models.Loan, error) {
	if err := policy.Authorize(actor, policy.OpDenyLoan); err != nil {
		return nil, err
	}
	if err := knownID(loanID, msgPendingNotFound); err != nil {
		return nil, err
	}

	var out *models.Loan
	err := e.repo.InTx(ctx, func(tx *db.Repo) error {
		loan, err := tx.FindLoanWithStatus(ctx, loanID, models.LoanPending)
		if err != nil {
			return notFound(err, msgPendingNotFound)
		}
		to, err := Next(loan.Status, EventDeny)
		if err != nil {
			return apperr.Conflict(err.Error())
		}
		if err := tx.TransitionLoan(ctx, loan.ID, models.LoanPending, map[string]any{
			"status":        to,
			"denied_by":     actor.ID,
			"denial_reason": strings.TrimSpace(reason),
		}); err != nil {
			if errors.Is(err, db.ErrStale) {
				return apperr.NotFound(msgPendingNotFound)
			}
			return apperr.Internal(err)
		}
		out, err = tx.FindLoanByID(ctx, loan.ID)
		return apperr.Internal(err)
	})
	if err != nil {
		return nil, e.finish(err, "loan deny", "loan_id", loanID, "actor_id", actor.ID)
	}
	return out, e.finish(nil, "loan denied", "loan_id", out.ID, "item_id", out.ItemID, "actor_id", actor.ID)
}

// ReturnItem closes an active loan and makes the item available again.
//
// Business rules:
//   - the loan exists and is active, otherwise NotFound
//   - a supplied return condition is copied to the item; damaged becomes poor
//   - no condition leaves the item's condition unchanged
func (e *Engine) ReturnItem(ctx context.Context, actor policy.Actor, loanID string, in ReturnInput) (*models.Loan, error) {
	if err := policy.Authorize(actor, policy.OpReturnItem); err != nil {
		return nil, err
	}
	if err := knownID(loanID, msgActiveNotFound); err != nil {
		return nil, err
	}
	if err := e.check(in); err != nil {
		return nil, err
	}

	var out *models.Loan
	err := e.repo.InTx(ctx, func(tx *db.Repo) error {
		loan, err := tx.FindLoanWithStatus(ctx, loanID, models.LoanActive)
		if err != nil {
			return notFound(err, msgActiveNotFound)
		}
		to, err := Next(loan.Status, EventReturn)
		if err != nil {
			return apperr.Conflict(err.Error())
		}

		item, err := tx.LockItem(ctx, loan.ItemID)
		if err != nil {
			return notFound(err, msgItemNotFound)
		}

		fields := map[string]any{
			"status":        to,
			"actual_return": e.Today(),
			"returned_by":   actor.ID,
			"return_notes":  strings.TrimSpace(in.Notes),
		}
		if len(in.Inspection) > 0 {
			fields["inspection"] = datatypes.JSONMap(in.Inspection)
		}
		itemFields := map[string]any{}
		if in.Condition != nil {
			fields["return_condition"] = *in.Condition
			itemFields["condition"] = itemConditionAfterReturn(*in.Condition)
		}

		if err := tx.TransitionLoan(ctx, loan.ID, models.LoanActive, fields); err != nil {
			if errors.Is(err, db.ErrStale) {
				return apperr.NotFound(msgActiveNotFound)
			}
			return apperr.Internal(err)
		}
		if err := tx.SetItemStatus(ctx, item.ID, models.ItemLoaned, models.ItemAvailable, itemFields); err != nil {
			if errors.Is(err, db.ErrStale) {
				return apperr.Conflict("item is not marked as loaned")
			}
			return apperr.Internal(err)
		}

		out, err = tx.FindLoanByID(ctx, loan.ID)
		return apperr.Internal(err)
	})
	if err != nil {
		return nil, e.finish(err, "loan return", "loan_id", loanID, "actor_id", actor.ID)
	}
	return out, e.finish(nil, "loan returned", "loan_id", out.ID, "item_id", out.ItemID, "actor_id", actor.ID)
}

func itemConditionAfterReturn(c models.Condition) models.Condition {
	if c == models.ConditionDamaged {
		return models.ConditionPoor
	}
	return c
}
