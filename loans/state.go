package loans

import (
	"errors"
	"fmt"

	"equipment_loaner/models"
)

// Event drives a loan from one status to the next.
type Event string

const (
	EventRequest          Event = "request"
	EventStaffCreate      Event = "staff_create"
	EventStaffAutoApprove Event = "staff_create_auto_approve"
	EventApprove          Event = "approve"
	EventDeny             Event = "deny"
	EventReturn           Event = "return"
)

// StatusNone is the state before a loan exists.
const StatusNone models.LoanStatus = ""

var ErrInvalidTransition = errors.New("invalid loan transition")

type edge struct {
	from  models.LoanStatus
	event Event
}

var transitions = map[edge]models.LoanStatus{
	{StatusNone, EventRequest}:          models.LoanPending,
	{StatusNone, EventStaffCreate}:      models.LoanPending,
	{StatusNone, EventStaffAutoApprove}: models.LoanActive,
	{models.LoanPending, EventApprove}:  models.LoanActive,
	{models.LoanPending, EventDeny}:     models.LoanDenied,
	{models.LoanActive, EventReturn}:    models.LoanReturned,
}

// Next returns the status reached from `from` on `event`.
// Pairs missing from the table (including anything out of denied or
// returned) yield ErrInvalidTransition.
func Next(from models.LoanStatus, event Event) (models.LoanStatus, error) {
	to, ok := transitions[edge{from, event}]
	if !ok {
		return "", fmt.Errorf("%w: %q on %q", ErrInvalidTransition, event, from)
	}
	return to, nil
}
