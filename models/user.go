package models

import (
	"time"
)

const UserTable = "eq_users"

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleStaff    Role = "staff"
	RoleBorrower Role = "borrower"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleStaff, RoleBorrower:
		return true
	}
	return false
}

// User 的 ID 同时作为 WebAuthn userHandle（存字符串即可，用时转 []byte）
type User struct {
	ID           string  `gorm:"primaryKey;type:uuid" json:"id"`
	Username     string  `gorm:"uniqueIndex;size:255;not null" json:"username"`
	PasswordHash string  `gorm:"size:255;not null" json:"-"`
	Name         string  `gorm:"size:255;not null" json:"name"`
	Email        string  `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Role         Role    `gorm:"size:20;not null;default:'borrower';check:chk_user_role,role IN ('admin','staff','borrower')" json:"role"`
	Active       bool    `gorm:"not null;default:true" json:"active"`
	ExternalID   *string `gorm:"uniqueIndex;size:64" json:"externalId,omitempty"` // 学号/工号
	Phone        string  `gorm:"size:40" json:"phone,omitempty"`
	UserType     string  `gorm:"size:20" json:"userType,omitempty"` // student/team/faculty/staff/admin

	LastLoginAt *time.Time `gorm:"index" json:"lastLoginAt,omitempty"`
	LastSeenAt  *time.Time `gorm:"index" json:"lastSeenAt,omitempty"`
	LoginCount  int64      `gorm:"not null;default:0" json:"loginCount"`
	LastLoginIP string     `gorm:"size:45" json:"-"`
	LastLoginUA string     `gorm:"size:255" json:"-"`

	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	Credentials []Credential `json:"-"`
}

func (User) TableName() string {
	return UserTable
}

// Credential 为每个注册的 Passkey 存档
// CredentialID / PublicKey / AAGUID 为二进制
type Credential struct {
	ID              string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID          string    `gorm:"type:uuid;index;not null" json:"userId"`
	CredentialID    []byte    `gorm:"uniqueIndex" json:"credentialId"`
	PublicKey       []byte    `json:"publicKey"`
	AttestationType string    `gorm:"size:64" json:"attestationType"`
	AAGUID          []byte    `json:"aaguid"`
	SignCount       uint32    `json:"signCount"`
	CloneWarning    bool      `json:"cloneWarning"`
	BackupEligible  bool      `json:"backupEligible"`
	BackupState     bool      `json:"backupState"`
	TransportsJSON  string    `gorm:"type:text" json:"transportsJson"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`

	LastUsedAt *time.Time `gorm:"index" json:"lastUsedAt,omitempty"`
}

func (Credential) TableName() string {
	return "eq_credentials"
}
