package auth

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// GoogleProfile is the normalized identity asserted by Google.
type GoogleProfile struct {
	Email      string
	Name       string
	SubjectID  string
	PictureURL string
}

// GoogleVerifier checks a Google assertion. VerifyIDToken validates a signed
// ID token; FetchUserInfo trusts whatever the userinfo endpoint returns.
type GoogleVerifier interface {
	VerifyIDToken(ctx context.Context, credential string) (*GoogleProfile, error)
	FetchUserInfo(ctx context.Context, accessToken string) (*GoogleProfile, error)
}

const msgGoogleFailed = "Google authentication failed"

func (s *Service) GoogleAuth(ctx context.Context, in GoogleAuthInput) (*SessionResult, error) {
	credential := strings.TrimSpace(in.Credential)
	accessToken := strings.TrimSpace(in.AccessToken)
	switch {
	case credential == "" && accessToken == "":
		return nil, newError(KindValidation, "Missing Google credential")
	case credential != "" && accessToken != "":
		return nil, newError(KindValidation, "Provide either a Google credential or an access token, not both")
	}
	if s.google == nil {
		return nil, newError(KindGoogleAuthFailed, msgGoogleFailed)
	}

	profile, err := s.verifyGoogle(ctx, credential, accessToken)
	if err != nil {
		s.log.Warn("google assertion rejected", zap.Error(err))
		if accessToken != "" {
			return nil, wrapError(KindGoogleAuthFailed, "Invalid Google access token", err)
		}
		return nil, wrapError(KindGoogleAuthFailed, msgGoogleFailed, err)
	}

	user, err := s.linkGoogleIdentity(ctx, profile)
	if err != nil {
		return nil, err
	}
	return s.session(user)
}

func (s *Service) verifyGoogle(ctx context.Context, credential, accessToken string) (*GoogleProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, s.externalTimeout)
	defer cancel()

	var (
		profile *GoogleProfile
		err     error
	)
	if credential != "" {
		profile, err = s.google.VerifyIDToken(ctx, credential)
	} else {
		profile, err = s.google.FetchUserInfo(ctx, accessToken)
	}
	if err != nil {
		return nil, err
	}
	if profile == nil || NormalizeEmail(profile.Email) == "" {
		return nil, errors.New("google profile has no email")
	}
	if profile.SubjectID == "" {
		return nil, errors.New("google profile has no subject")
	}
	profile.Email = NormalizeEmail(profile.Email)
	return profile, nil
}

// linkGoogleIdentity finds or creates the account for profile. Existing
// accounts keep their password, verification state and codes.
func (s *Service) linkGoogleIdentity(ctx context.Context, profile *GoogleProfile) (*User, error) {
	user, err := s.users.FindByEmail(ctx, profile.Email, WithPasswordHash())
	if err != nil {
		return nil, s.internal("google lookup", err)
	}

	if user == nil {
		nu := NewUser{
			Email:           profile.Email,
			Name:            googleDisplayName(profile),
			GoogleSubjectID: &profile.SubjectID,
			IsVerified:      true,
		}
		if profile.PictureURL != "" {
			nu.ProfilePhotoURL = &profile.PictureURL
		}
		created, err := s.users.Create(ctx, nu)
		if err == nil {
			s.log.Info("google account created", zap.String("user_id", created.ID))
			return created, nil
		}
		if !errors.Is(err, ErrDuplicateIdentity) {
			return nil, s.internal("google create", err)
		}
		// Lost a race with a concurrent first sign-in; link to the winner.
		user, err = s.users.FindByEmail(ctx, profile.Email)
		if err != nil {
			return nil, s.internal("google lookup", err)
		}
		if user == nil {
			return nil, wrapError(KindAccountLinkConflict, "This Google account is already linked to another user", ErrDuplicateIdentity)
		}
	}

	var patch UserPatch
	if user.GoogleSubjectID == nil {
		patch.GoogleSubjectID = &profile.SubjectID
	}
	if profile.PictureURL != "" {
		patch.ProfilePhotoURL = &profile.PictureURL
	}
	if patch.empty() {
		return user, nil
	}

	updated, err := s.users.Update(ctx, user.ID, patch)
	if errors.Is(err, ErrDuplicateIdentity) {
		return nil, wrapError(KindAccountLinkConflict, "This Google account is already linked to another user", err)
	}
	if err != nil {
		return nil, s.internal("google link", err)
	}
	if updated == nil {
		return nil, newError(KindNotFound, "User not found")
	}
	if patch.GoogleSubjectID != nil {
		s.log.Info("google identity linked", zap.String("user_id", updated.ID))
	}
	return updated, nil
}

func googleDisplayName(p *GoogleProfile) string {
	if name := strings.TrimSpace(p.Name); name != "" {
		return name
	}
	local, _, _ := strings.Cut(p.Email, "@")
	return local
}
