package entity

import (
	"net/http"
	"strings"
	"time"

	"docspace/lib/validate"
)

// InviteError is the reason an invite code cannot be used.
type InviteError string

const (
	InviteNotFound    InviteError = "NOT_FOUND"
	InviteDeactivated InviteError = "DEACTIVATED"
	InviteExpired     InviteError = "EXPIRED"
	InviteExhausted   InviteError = "EXHAUSTED"
)

// Message is the user-facing text for the reason
func (e InviteError) Message() string {
	switch e {
	case InviteNotFound:
		return "Invite code not found"
	case InviteDeactivated:
		return "Invite code is deactivated"
	case InviteExpired:
		return "Invite code has expired"
	case InviteExhausted:
		return "Invite code has reached maximum uses"
	default:
		return ""
	}
}

type InviteUsage struct {
	UserId   string    `json:"user_id" bson:"user_id"`
	UserName string    `json:"user_name" bson:"user_name"`
	UsedAt   time.Time `json:"used_at" bson:"used_at"`
}

// InviteCode gates new-account registration. CurrentUses always equals
// len(UsedBy); IsActive only ever goes from true to false.
type InviteCode struct {
	Id            string        `json:"id" bson:"id"`
	Code          string        `json:"code" bson:"code"`
	CreatedBy     string        `json:"created_by" bson:"created_by"`
	CreatedByName string        `json:"created_by_name" bson:"created_by_name"`
	CreatedAt     time.Time     `json:"created_at" bson:"created_at"`
	ExpiresAt     *time.Time    `json:"expires_at,omitempty" bson:"expires_at,omitempty"`
	MaxUses       *int          `json:"max_uses,omitempty" bson:"max_uses,omitempty"`
	CurrentUses   int           `json:"current_uses" bson:"current_uses"`
	IsActive      bool          `json:"is_active" bson:"is_active"`
	UsedBy        []InviteUsage `json:"used_by" bson:"used_by"`
	Description   string        `json:"description,omitempty" bson:"description,omitempty"`
}

func (c *InviteCode) IsExpired(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}

func (c *InviteCode) IsExhausted() bool {
	return c.MaxUses != nil && c.CurrentUses >= *c.MaxUses
}

// Check returns the first reason the code is not usable at `now`,
// or an empty InviteError when it is usable.
func (c *InviteCode) Check(now time.Time) InviteError {
	switch {
	case !c.IsActive:
		return InviteDeactivated
	case c.IsExpired(now):
		return InviteExpired
	case c.IsExhausted():
		return InviteExhausted
	}
	return ""
}

// Clone returns a deep copy
func (c *InviteCode) Clone() InviteCode {
	cp := *c
	if c.ExpiresAt != nil {
		t := *c.ExpiresAt
		cp.ExpiresAt = &t
	}
	if c.MaxUses != nil {
		n := *c.MaxUses
		cp.MaxUses = &n
	}
	cp.UsedBy = make([]InviteUsage, len(c.UsedBy))
	copy(cp.UsedBy, c.UsedBy)
	return cp
}

// InviteValidation is the outcome of looking up a code for registration.
type InviteValidation struct {
	Valid      bool        `json:"valid"`
	InviteCode *InviteCode `json:"invite_code,omitempty"`
	Error      InviteError `json:"error,omitempty"`
}

// InviteStats is a reporting breakdown; Active, Expired and Used overlap.
type InviteStats struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Expired   int `json:"expired"`
	Used      int `json:"used"`
	TotalUses int `json:"total_uses"`
}

type InviteSnapshot struct {
	InviteCodes []InviteCode `json:"invite_codes" bson:"invite_codes"`
}

// InviteRequest is the admin request to generate a code.
// ExpiresInDays is a shortcut for ExpiresAt relative to now.
type InviteRequest struct {
	ExpiresAt     *time.Time `json:"expires_at,omitempty" validate:"omitempty"`
	ExpiresInDays int        `json:"expires_in_days,omitempty" validate:"omitempty,min=1,max=3650"`
	MaxUses       *int       `json:"max_uses,omitempty" validate:"omitempty,min=1"`
	Description   string     `json:"description,omitempty" validate:"omitempty,max=256"`
}

func (r *InviteRequest) Bind(_ *http.Request) error {
	r.Description = strings.TrimSpace(r.Description)
	return validate.Struct(r)
}

// ExpiryFrom resolves the absolute expiry time, if any
func (r *InviteRequest) ExpiryFrom(now time.Time) *time.Time {
	if r.ExpiresAt != nil {
		t := r.ExpiresAt.UTC()
		return &t
	}
	if r.ExpiresInDays > 0 {
		t := now.AddDate(0, 0, r.ExpiresInDays)
		return &t
	}
	return nil
}

// CodeRequest carries a code typed by a user; codes are matched upper-case.
type CodeRequest struct {
	Code string `json:"code" validate:"required,min=4,max=32,alphanum"`
}

func (r *CodeRequest) Bind(_ *http.Request) error {
	r.Code = strings.ToUpper(strings.TrimSpace(r.Code))
	return validate.Struct(r)
}

type RedeemRequest struct {
	Code     string `json:"code" validate:"required,min=4,max=32,alphanum"`
	UserId   string `json:"user_id" validate:"required,max=128"`
	UserName string `json:"user_name" validate:"required,max=256"`
}

func (r *RedeemRequest) Bind(_ *http.Request) error {
	r.Code = strings.ToUpper(strings.TrimSpace(r.Code))
	r.UserName = strings.TrimSpace(r.UserName)
	return validate.Struct(r)
}
