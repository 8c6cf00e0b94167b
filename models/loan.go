package models

import (
	"time"

	"gorm.io/datatypes"
)

const LoanTable = "eq_loans"

type LoanStatus string

const (
	LoanPending  LoanStatus = "pending"
	LoanActive   LoanStatus = "active"
	LoanReturned LoanStatus = "returned"
	LoanDenied   LoanStatus = "denied"
)

var LoanStatuses = []LoanStatus{LoanPending, LoanActive, LoanReturned, LoanDenied}

func (s LoanStatus) Valid() bool {
	for _, v := range LoanStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Open reports whether the loan still blocks a new request for the same item and borrower.
func (s LoanStatus) Open() bool { return s == LoanPending || s == LoanActive }

// Terminal 状态不再流转
func (s LoanStatus) Terminal() bool { return s == LoanReturned || s == LoanDenied }

type LoanOrigin string

const (
	OriginUser  LoanOrigin = "user_created"
	OriginStaff LoanOrigin = "staff_created"
)

// Loan 的日期字段全部是 UTC 零点的日历日期；overdue 只在读取时计算
type Loan struct {
	ID         string     `gorm:"type:uuid;primaryKey" json:"id"`
	ItemID     string     `gorm:"type:uuid;index;not null" json:"itemId"`
	BorrowerID string     `gorm:"type:uuid;index;not null" json:"borrowerId"`
	Status     LoanStatus `gorm:"size:20;index;not null;default:'pending';check:chk_loan_status,status IN ('pending','active','returned','denied')" json:"status"`

	RequestDate    time.Time  `gorm:"type:date;not null" json:"requestDate"`
	ApprovedDate   *time.Time `gorm:"type:date" json:"approvedDate,omitempty"`
	CheckoutDate   *time.Time `gorm:"type:date" json:"checkoutDate,omitempty"`
	ExpectedReturn time.Time  `gorm:"type:date;index;not null" json:"expectedReturn"`
	ActualReturn   *time.Time `gorm:"type:date" json:"actualReturn,omitempty"`

	Reason          string            `gorm:"type:text" json:"reason,omitempty"`
	ApprovedBy      *string           `gorm:"type:uuid" json:"approvedBy,omitempty"`
	DeniedBy        *string           `gorm:"type:uuid" json:"deniedBy,omitempty"`
	DenialReason    string            `gorm:"type:text" json:"denialReason,omitempty"`
	ReturnedBy      *string           `gorm:"type:uuid" json:"returnedBy,omitempty"`
	ReturnCondition *Condition        `gorm:"size:20" json:"returnCondition,omitempty"`
	ReturnNotes     string            `gorm:"type:text" json:"returnNotes,omitempty"`
	Inspection      datatypes.JSONMap `json:"inspection,omitempty"`

	Origin    LoanOrigin `gorm:"size:20;not null;default:'user_created'" json:"origin"`
	CreatedBy *string    `gorm:"type:uuid" json:"createdBy,omitempty"`

	Item     *Item `json:"item,omitempty"`
	Borrower *User `gorm:"foreignKey:BorrowerID" json:"borrower,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Loan) TableName() string { return LoanTable }

// Overdue is derived, never stored.
func (l Loan) Overdue(today time.Time) bool {
	return l.Status == LoanActive && l.ExpectedReturn.Before(today)
}

// Day truncates t to its UTC calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
