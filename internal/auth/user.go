package auth

import (
	"strings"
	"time"
)

// CodeKind names one of the independent code/expiry pairs on a User.
type CodeKind string

const (
	CodeVerification   CodeKind = "verification"
	CodeReset          CodeKind = "reset"
	CodeChangePassword CodeKind = "change_password"
)

// Code is a stored one-time code. Hash is the SHA-256 digest of the plaintext.
type Code struct {
	Hash      string
	ExpiresAt time.Time
}

func (c *Code) Expired(now time.Time) bool {
	return c == nil || now.After(c.ExpiresAt)
}

type User struct {
	ID                 string
	Email              string
	Name               string
	ProfilePhotoURL    *string
	PasswordHash       *string
	HasPassword        bool
	GoogleSubjectID    *string
	IsVerified         bool
	VerificationCode   *Code
	ResetCode          *Code
	ChangePasswordCode *Code
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// GoogleOnly reports whether the account can only sign in through Google.
func (u *User) GoogleOnly() bool {
	return u.GoogleSubjectID != nil && !u.HasPassword
}

func (u *User) CodeFor(kind CodeKind) *Code {
	switch kind {
	case CodeVerification:
		return u.VerificationCode
	case CodeReset:
		return u.ResetCode
	case CodeChangePassword:
		return u.ChangePasswordCode
	default:
		return nil
	}
}

func (u *User) setCode(kind CodeKind, c *Code) {
	switch kind {
	case CodeVerification:
		u.VerificationCode = c
	case CodeReset:
		u.ResetCode = c
	case CodeChangePassword:
		u.ChangePasswordCode = c
	}
}

// NewUser carries the fields accepted by UserStore.Create.
type NewUser struct {
	Email           string
	Name            string
	ProfilePhotoURL *string
	PasswordHash    *string
	GoogleSubjectID *string
	IsVerified      bool
	Codes           map[CodeKind]Code
}

// UserPatch is a partial update. Nil fields are left untouched.
type UserPatch struct {
	Name            *string
	ProfilePhotoURL *string
	PasswordHash    *string
	GoogleSubjectID *string
	IsVerified      *bool
	SetCodes        map[CodeKind]Code
	ClearCodes      []CodeKind
}

func (p UserPatch) empty() bool {
	return p.Name == nil && p.ProfilePhotoURL == nil && p.PasswordHash == nil &&
		p.GoogleSubjectID == nil && p.IsVerified == nil && len(p.SetCodes) == 0 && len(p.ClearCodes) == 0
}

func (p UserPatch) apply(u *User) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.ProfilePhotoURL != nil {
		u.ProfilePhotoURL = stringPtr(*p.ProfilePhotoURL)
	}
	if p.PasswordHash != nil {
		u.PasswordHash = stringPtr(*p.PasswordHash)
		u.HasPassword = true
	}
	if p.GoogleSubjectID != nil {
		u.GoogleSubjectID = stringPtr(*p.GoogleSubjectID)
	}
	if p.IsVerified != nil {
		u.IsVerified = *p.IsVerified
	}
	for _, kind := range p.ClearCodes {
		u.setCode(kind, nil)
	}
	for kind, c := range p.SetCodes {
		c := c
		u.setCode(kind, &c)
	}
}

// PublicUser is the client-facing shape of a User. It has no secret or code fields.
type PublicUser struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	ProfilePhoto *string   `json:"profilePhoto"`
	IsVerified   bool      `json:"isVerified"`
	GoogleLinked bool      `json:"googleLinked"`
	HasPassword  bool      `json:"hasPassword"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Public drops secrets and codes.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		ProfilePhoto: u.ProfilePhotoURL,
		IsVerified:   u.IsVerified,
		GoogleLinked: u.GoogleSubjectID != nil,
		HasPassword:  u.HasPassword,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

// NormalizeEmail lowercases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func stringPtr(s string) *string {
	return &s
}

func boolPtr(b bool) *bool {
	return &b
}
