package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDayTruncatesToUTCDate(t *testing.T) {
	la := time.FixedZone("PST", -8*3600)
	got := Day(time.Date(2025, 3, 9, 20, 0, 0, 0, la)) // 04:00 UTC on the 10th
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), got)
}

func TestLoanOverdue(t *testing.T) {
	today := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		status   LoanStatus
		expected time.Time
		want     bool
	}{
		{LoanActive, today.AddDate(0, 0, -1), true},
		{LoanActive, today, false},
		{LoanPending, today.AddDate(0, 0, -3), false},
		{LoanReturned, today.AddDate(0, 0, -3), false},
	}
	for _, tc := range cases {
		l := Loan{Status: tc.status, ExpectedReturn: tc.expected}
		assert.Equal(t, tc.want, l.Overdue(today), "%s due %s", tc.status, tc.expected.Format(time.DateOnly))
	}
}

func TestConditions(t *testing.T) {
	assert.True(t, ConditionDamaged.ValidReturnCondition())
	assert.False(t, ConditionDamaged.ValidItemCondition())
	assert.True(t, ConditionFair.ValidItemCondition())
	assert.False(t, Condition("broken").ValidReturnCondition())
}

func TestStatusSets(t *testing.T) {
	assert.True(t, ItemFaulty.Valid())
	assert.False(t, ItemStatus("lost").Valid())
	assert.True(t, LoanPending.Open())
	assert.True(t, LoanDenied.Terminal())
	assert.False(t, LoanActive.Terminal())
	assert.True(t, RoleStaff.Valid())
	assert.False(t, Role("root").Valid())
}
