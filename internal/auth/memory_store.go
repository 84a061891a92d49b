package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryUserStore keeps users in process memory. It backs tests and STORE_DRIVER=memory.
type MemoryUserStore struct {
	mu      sync.Mutex
	users   map[string]*User
	byEmail map[string]string
	now     func() time.Time
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		users:   make(map[string]*User),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

func (s *MemoryUserStore) FindByEmail(_ context.Context, email string, opts ...ReadOption) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, nil
	}
	return collectReadOptions(opts).project(cloneUser(s.users[id])), nil
}

func (s *MemoryUserStore) FindByID(_ context.Context, id string, opts ...ReadOption) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return collectReadOptions(opts).project(cloneUser(u)), nil
}

func (s *MemoryUserStore) Create(_ context.Context, nu NewUser) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := NormalizeEmail(nu.Email)
	if email == "" {
		return nil, fmt.Errorf("create user: email is required")
	}
	if _, taken := s.byEmail[email]; taken {
		return nil, fmt.Errorf("create user %s: %w", email, ErrDuplicateIdentity)
	}
	if nu.GoogleSubjectID != nil && s.subjectTaken(*nu.GoogleSubjectID, "") {
		return nil, fmt.Errorf("create user %s: %w", email, ErrDuplicateIdentity)
	}

	now := s.now().UTC()
	u := &User{
		ID:         uuid.NewString(),
		Email:      email,
		Name:       nu.Name,
		IsVerified: nu.IsVerified,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	UserPatch{
		ProfilePhotoURL: nu.ProfilePhotoURL,
		PasswordHash:    nu.PasswordHash,
		GoogleSubjectID: nu.GoogleSubjectID,
		SetCodes:        nu.Codes,
	}.apply(u)

	s.users[u.ID] = u
	s.byEmail[email] = u.ID
	return readOptions{}.project(cloneUser(u)), nil
}

func (s *MemoryUserStore) Update(_ context.Context, id string, patch UserPatch) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	if err := s.applyLocked(u, patch); err != nil {
		return nil, err
	}
	return readOptions{}.project(cloneUser(u)), nil
}

func (s *MemoryUserStore) ConsumeCode(_ context.Context, id string, kind CodeKind, codeHash string, patch UserPatch) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrCodeNotMatched
	}
	stored := u.CodeFor(kind)
	if stored == nil || stored.Hash != codeHash {
		return nil, ErrCodeNotMatched
	}
	patch.ClearCodes = append(patch.ClearCodes, kind)
	if err := s.applyLocked(u, patch); err != nil {
		return nil, err
	}
	return readOptions{}.project(cloneUser(u)), nil
}

func (s *MemoryUserStore) applyLocked(u *User, patch UserPatch) error {
	if patch.empty() {
		return nil
	}
	if patch.GoogleSubjectID != nil && s.subjectTaken(*patch.GoogleSubjectID, u.ID) {
		return fmt.Errorf("update user %s: %w", u.ID, ErrDuplicateIdentity)
	}
	patch.apply(u)
	u.UpdatedAt = s.now().UTC()
	return nil
}

func (s *MemoryUserStore) subjectTaken(subject, exceptID string) bool {
	for id, u := range s.users {
		if id != exceptID && u.GoogleSubjectID != nil && *u.GoogleSubjectID == subject {
			return true
		}
	}
	return false
}

func cloneUser(u *User) *User {
	if u == nil {
		return nil
	}
	c := *u
	c.ProfilePhotoURL = clonePtr(u.ProfilePhotoURL)
	c.PasswordHash = clonePtr(u.PasswordHash)
	c.GoogleSubjectID = clonePtr(u.GoogleSubjectID)
	c.VerificationCode = clonePtr(u.VerificationCode)
	c.ResetCode = clonePtr(u.ResetCode)
	c.ChangePasswordCode = clonePtr(u.ChangePasswordCode)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
