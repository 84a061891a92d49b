package auth

import "context"

// UserStore persists users. Lookups return nil, nil when no user matches.
type UserStore interface {
	FindByEmail(ctx context.Context, email string, opts ...ReadOption) (*User, error)
	FindByID(ctx context.Context, id string, opts ...ReadOption) (*User, error)
	// Create fails with ErrDuplicateIdentity when the email or Google subject is taken.
	Create(ctx context.Context, nu NewUser) (*User, error)
	// Update merges patch into the user. It returns nil, nil when the user is gone.
	Update(ctx context.Context, id string, patch UserPatch) (*User, error)
	// ConsumeCode applies patch and clears the kind code only while the stored
	// digest still equals codeHash. Otherwise it returns ErrCodeNotMatched.
	ConsumeCode(ctx context.Context, id string, kind CodeKind, codeHash string, patch UserPatch) (*User, error)
}

type readOptions struct {
	withPasswordHash bool
}

type ReadOption func(*readOptions)

// WithPasswordHash includes the password digest in the returned user.
func WithPasswordHash() ReadOption {
	return func(o *readOptions) {
		o.withPasswordHash = true
	}
}

func collectReadOptions(opts []ReadOption) readOptions {
	var o readOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o readOptions) project(u *User) *User {
	if u != nil && !o.withPasswordHash {
		u.PasswordHash = nil
	}
	return u
}
