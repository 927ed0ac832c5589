package models

import (
	"strings"
	"time"
)

// Role is the fixed capability class of an account.
type Role string

const (
	RoleCitizen  Role = "citizen"
	RoleAgent    Role = "agent"
	RoleRecycler Role = "recycler"
	RoleAdmin    Role = "admin"
)

// ParseRole accepts the canonical role names plus "user", the name older
// clients send for citizens.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleCitizen, "user":
		return RoleCitizen, true
	case RoleAgent:
		return RoleAgent, true
	case RoleRecycler:
		return RoleRecycler, true
	case RoleAdmin:
		return RoleAdmin, true
	}
	return "", false
}

// RequiresApproval reports whether accounts of this role start pending.
func (r Role) RequiresApproval() bool {
	return r == RoleAgent || r == RoleRecycler
}

// AccountStatus is the approval state of an account.
type AccountStatus string

const (
	AccountPending     AccountStatus = "pending"
	AccountActive      AccountStatus = "active"
	AccountRejected    AccountStatus = "rejected"
	AccountDeactivated AccountStatus = "deactivated"
)

// Valid reports whether s is a known account status.
func (s AccountStatus) Valid() bool {
	switch s {
	case AccountPending, AccountActive, AccountRejected, AccountDeactivated:
		return true
	}
	return false
}

// InitialStatus returns the status a freshly registered account of role r gets.
func InitialStatus(r Role) AccountStatus {
	if r.RequiresApproval() {
		return AccountPending
	}
	return AccountActive
}

type Account struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Status       AccountStatus
	Address      string
	Phone        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AccountView is the outward representation of an account. It never carries
// credential material.
type AccountView struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Email     string        `json:"email"`
	Role      Role          `json:"role"`
	Status    AccountStatus `json:"status"`
	Address   string        `json:"address,omitempty"`
	Phone     string        `json:"phone,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func (a Account) View() AccountView {
	return AccountView{
		ID:        a.ID,
		Name:      a.Name,
		Email:     a.Email,
		Role:      a.Role,
		Status:    a.Status,
		Address:   a.Address,
		Phone:     a.Phone,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// Actor is the account on whose behalf an operation runs.
type Actor struct {
	ID   string
	Role Role
}

// NormalizeEmail trims and lower-cases an email address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
