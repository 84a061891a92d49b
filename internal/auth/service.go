package auth

import (
	"context"
	"errors"
	"io"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const DefaultExternalTimeout = 10 * time.Second

// Mailer delivers one-time codes. Implementations render the localized body.
type Mailer interface {
	SendCode(ctx context.Context, msg CodeEmail) error
}

type CodeEmail struct {
	To        string
	Name      string
	Code      string
	Kind      CodeKind
	Locale    string
	ExpiresIn time.Duration
}

// Photo is an uploaded image accepted by the HTTP layer.
type Photo struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// PhotoUploader stores a profile photo and returns its public URL.
type PhotoUploader interface {
	Upload(ctx context.Context, photo Photo) (string, error)
}

type SignupInput struct {
	Name     string
	Email    string
	Password string
	Photo    *Photo
	Locale   string
}

type LoginInput struct {
	Email    string
	Password string
}

type ResetPasswordInput struct {
	UserID   string
	Code     string
	Password string
}

type ChangePasswordInput struct {
	UserID      string
	Code        string
	NewPassword string
}

type GoogleAuthInput struct {
	Credential  string
	AccessToken string
}

// SessionResult is returned by every flow that signs the user in.
type SessionResult struct {
	Token string     `json:"token"`
	User  PublicUser `json:"user"`
}

type ServiceDeps struct {
	Users           UserStore
	Hasher          PasswordHasher
	Tokens          *TokenIssuer
	Codes           CodeGenerator
	Mailer          Mailer
	Photos          PhotoUploader
	Google          GoogleVerifier
	Logger          *zap.Logger
	Now             func() time.Time
	ExternalTimeout time.Duration
}

// Service runs the account flows. It is safe for concurrent use.
type Service struct {
	users           UserStore
	hasher          PasswordHasher
	tokens          *TokenIssuer
	codes           CodeGenerator
	mailer          Mailer
	photos          PhotoUploader
	google          GoogleVerifier
	log             *zap.Logger
	now             func() time.Time
	externalTimeout time.Duration
}

func NewService(deps ServiceDeps) (*Service, error) {
	switch {
	case deps.Users == nil:
		return nil, errors.New("auth service: user store is required")
	case deps.Tokens == nil:
		return nil, errors.New("auth service: token issuer is required")
	case deps.Mailer == nil:
		return nil, errors.New("auth service: mailer is required")
	}

	s := &Service{
		users:           deps.Users,
		hasher:          deps.Hasher,
		tokens:          deps.Tokens,
		codes:           deps.Codes,
		mailer:          deps.Mailer,
		photos:          deps.Photos,
		google:          deps.Google,
		log:             deps.Logger,
		now:             deps.Now,
		externalTimeout: deps.ExternalTimeout,
	}
	if s.hasher == nil {
		s.hasher = NewBcryptHasher(0)
	}
	if s.codes == nil {
		s.codes = NewNumericCodes(DefaultCodeTTL)
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.externalTimeout <= 0 {
		s.externalTimeout = DefaultExternalTimeout
	}
	return s, nil
}

func (s *Service) Signup(ctx context.Context, in SignupInput) (string, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = NormalizeEmail(in.Email)
	if in.Name == "" || in.Email == "" || in.Password == "" {
		return "", newError(KindValidation, "Name, email and password are required")
	}
	if !validEmail(in.Email) {
		return "", newError(KindValidation, "Invalid email address")
	}
	if err := checkPasswordStrength(in.Password); err != nil {
		return "", err
	}

	existing, err := s.users.FindByEmail(ctx, in.Email)
	if err != nil {
		return "", s.internal("signup lookup", err)
	}
	if err := signupBlocked(existing); err != nil {
		return "", err
	}

	photoURL := fallbackAvatar(in.Name)
	if in.Photo != nil {
		uploaded, err := s.uploadPhoto(ctx, *in.Photo)
		if err != nil {
			s.log.Warn("signup photo upload failed", zap.String("email", in.Email), zap.Error(err))
			return "", wrapError(KindExternalService, "Image upload failed", err)
		}
		photoURL = uploaded
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return "", s.internal("hash password", err)
	}
	code, pending, err := s.newCode()
	if err != nil {
		return "", s.internal("generate code", err)
	}

	resignup := UserPatch{
		Name:            &in.Name,
		PasswordHash:    &hash,
		ProfilePhotoURL: &photoURL,
		SetCodes:        map[CodeKind]Code{CodeVerification: pending},
	}

	var user *User
	if existing == nil {
		user, err = s.users.Create(ctx, NewUser{
			Email:           in.Email,
			Name:            in.Name,
			ProfilePhotoURL: &photoURL,
			PasswordHash:    &hash,
			Codes:           map[CodeKind]Code{CodeVerification: pending},
		})
		if errors.Is(err, ErrDuplicateIdentity) {
			// A concurrent signup created the row first. Treat it like any existing account.
			existing, err = s.users.FindByEmail(ctx, in.Email)
			if err != nil {
				return "", s.internal("signup lookup", err)
			}
			if existing == nil {
				return "", newError(KindAlreadyExists, "Email already exists")
			}
			if err := signupBlocked(existing); err != nil {
				return "", err
			}
		}
	}
	if existing != nil && user == nil && err == nil {
		user, err = s.users.Update(ctx, existing.ID, resignup)
		if err == nil && user == nil {
			return "", newError(KindNotFound, "Account not found")
		}
	}
	if err != nil {
		return "", s.internal("signup save", err)
	}

	if err := s.sendCode(ctx, user, CodeVerification, code, in.Locale); err != nil {
		return "", err
	}
	return user.ID, nil
}

func (s *Service) VerifyEmail(ctx context.Context, userID, code string) error {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(code) == "" {
		return newError(KindValidation, "Missing user or code")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return s.internal("verify email lookup", err)
	}
	if user == nil {
		return newError(KindNotFound, "User not found")
	}
	if err := s.checkCode(ctx, user, CodeVerification, code, "Verification code expired"); err != nil {
		return err
	}
	return s.consume(ctx, user, CodeVerification, UserPatch{IsVerified: boolPtr(true)})
}

func (s *Service) ResendVerification(ctx context.Context, email, locale string) (string, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return "", newError(KindValidation, "Email is required")
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return "", s.internal("resend lookup", err)
	}
	if user == nil {
		return "", newError(KindNotFound, "Account not found")
	}
	if user.IsVerified {
		return "", newError(KindAlreadyVerified, "Account already verified")
	}
	return s.issueCode(ctx, user, CodeVerification, locale)
}

func (s *Service) Login(ctx context.Context, in LoginInput) (*SessionResult, error) {
	email := NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, newError(KindValidation, "Email and password are required")
	}
	user, err := s.users.FindByEmail(ctx, email, WithPasswordHash())
	if err != nil {
		return nil, s.internal("login lookup", err)
	}
	if user == nil {
		return nil, newError(KindNotFound, "User not found")
	}
	if !user.IsVerified {
		return nil, newError(KindEmailNotVerified, "Please verify your email")
	}
	if user.PasswordHash == nil {
		return nil, newError(KindAccountLinkConflict, msgGoogleOnlyLogin)
	}
	if !s.hasher.Compare(*user.PasswordHash, in.Password) {
		return nil, newError(KindInvalidCredentials, "Invalid password")
	}
	return s.session(user)
}

func (s *Service) ForgotPassword(ctx context.Context, email, locale string) (string, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return "", newError(KindValidation, "Email is required")
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return "", s.internal("forgot password lookup", err)
	}
	if user == nil {
		return "", newError(KindNotFound, "Email not found")
	}
	if user.GoogleOnly() {
		return "", newError(KindAccountLinkConflict, msgPasswordDisabled)
	}
	return s.issueCode(ctx, user, CodeReset, locale)
}

// VerifyResetCode confirms a reset code without consuming it.
func (s *Service) VerifyResetCode(ctx context.Context, userID, code string) error {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(code) == "" {
		return newError(KindValidation, "Missing user or code")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return s.internal("verify reset lookup", err)
	}
	if user == nil {
		return newError(KindInvalidCode, msgInvalidCode)
	}
	return s.checkCode(ctx, user, CodeReset, code, "Reset code expired, resend a new code")
}

func (s *Service) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	if strings.TrimSpace(in.UserID) == "" || strings.TrimSpace(in.Code) == "" || in.Password == "" {
		return newError(KindValidation, "User, code and password are required")
	}
	if err := checkPasswordStrength(in.Password); err != nil {
		return err
	}
	user, err := s.users.FindByID(ctx, in.UserID)
	if err != nil {
		return s.internal("reset lookup", err)
	}
	if user == nil {
		return newError(KindInvalidCode, msgInvalidCode)
	}
	if err := s.checkCode(ctx, user, CodeReset, in.Code, "Reset code expired"); err != nil {
		return err
	}
	if user.GoogleOnly() {
		return newError(KindAccountLinkConflict, msgPasswordDisabled)
	}
	return s.setPassword(ctx, user, CodeReset, in.Password)
}

func (s *Service) UpdateProfilePhoto(ctx context.Context, userID string, photo *Photo) (*PublicUser, error) {
	if photo == nil {
		return nil, newError(KindValidation, "Please attach an image file")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, s.internal("photo lookup", err)
	}
	if user == nil {
		return nil, newError(KindNotFound, "User not found")
	}

	photoURL, err := s.uploadPhoto(ctx, *photo)
	if err != nil {
		s.log.Warn("profile photo upload failed", zap.String("user_id", userID), zap.Error(err))
		return nil, wrapError(KindExternalService, "Unable to update profile photo right now", err)
	}
	updated, err := s.users.Update(ctx, userID, UserPatch{ProfilePhotoURL: &photoURL})
	if err != nil {
		return nil, s.internal("photo save", err)
	}
	if updated == nil {
		return nil, newError(KindNotFound, "User not found")
	}
	pub := updated.Public()
	return &pub, nil
}

func (s *Service) RequestChangePassword(ctx context.Context, userID, locale string) (string, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return "", s.internal("change password lookup", err)
	}
	if user == nil {
		return "", newError(KindNotFound, "User not found")
	}
	if user.GoogleOnly() {
		return "", newError(KindAccountLinkConflict, msgPasswordDisabled)
	}
	return s.issueCode(ctx, user, CodeChangePassword, locale)
}

func (s *Service) VerifyChangePasswordCode(ctx context.Context, userID, code string) error {
	if strings.TrimSpace(code) == "" {
		return newError(KindValidation, "Code is required")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return s.internal("verify change password lookup", err)
	}
	if user == nil {
		return newError(KindInvalidCode, msgInvalidCode)
	}
	return s.checkCode(ctx, user, CodeChangePassword, code, "Change password code expired, request a new code")
}

func (s *Service) ChangePassword(ctx context.Context, in ChangePasswordInput) error {
	if strings.TrimSpace(in.Code) == "" || in.NewPassword == "" {
		return newError(KindValidation, "Code and new password are required")
	}
	if err := checkPasswordStrength(in.NewPassword); err != nil {
		return err
	}
	user, err := s.users.FindByID(ctx, in.UserID)
	if err != nil {
		return s.internal("change password lookup", err)
	}
	if user == nil {
		return newError(KindInvalidCode, msgInvalidCode)
	}
	if err := s.checkCode(ctx, user, CodeChangePassword, in.Code, "Change password code expired"); err != nil {
		return err
	}
	if user.GoogleOnly() {
		return newError(KindAccountLinkConflict, msgPasswordDisabled)
	}
	return s.setPassword(ctx, user, CodeChangePassword, in.NewPassword)
}

// issueCode stores a fresh code of kind on user and mails it.
func (s *Service) issueCode(ctx context.Context, user *User, kind CodeKind, locale string) (string, error) {
	code, pending, err := s.newCode()
	if err != nil {
		return "", s.internal("generate code", err)
	}
	updated, err := s.users.Update(ctx, user.ID, UserPatch{SetCodes: map[CodeKind]Code{kind: pending}})
	if err != nil {
		return "", s.internal("save code", err)
	}
	if updated == nil {
		return "", newError(KindNotFound, "User not found")
	}
	if err := s.sendCode(ctx, updated, kind, code, locale); err != nil {
		return "", err
	}
	return updated.ID, nil
}

func (s *Service) newCode() (string, Code, error) {
	code, err := s.codes.Generate()
	if err != nil {
		return "", Code{}, err
	}
	return code, Code{Hash: HashCode(code), ExpiresAt: s.codes.ExpiryFrom(s.now()).UTC()}, nil
}

// checkCode rejects a mismatch before looking at expiry, so an expired code
// is only reported to whoever knows it.
func (s *Service) checkCode(ctx context.Context, user *User, kind CodeKind, submitted, expiredMsg string) error {
	stored := user.CodeFor(kind)
	if !codeMatches(stored, submitted) {
		return newError(KindInvalidCode, msgInvalidCode)
	}
	if stored.Expired(s.now()) {
		if _, err := s.users.ConsumeCode(ctx, user.ID, kind, stored.Hash, UserPatch{}); err != nil && !errors.Is(err, ErrCodeNotMatched) {
			s.log.Warn("clear expired code failed", zap.String("user_id", user.ID), zap.String("kind", string(kind)), zap.Error(err))
		}
		return newError(KindCodeExpired, expiredMsg)
	}
	return nil
}

func (s *Service) consume(ctx context.Context, user *User, kind CodeKind, patch UserPatch) error {
	stored := user.CodeFor(kind)
	if stored == nil {
		return newError(KindInvalidCode, msgInvalidCode)
	}
	_, err := s.users.ConsumeCode(ctx, user.ID, kind, stored.Hash, patch)
	if errors.Is(err, ErrCodeNotMatched) {
		return wrapError(KindInvalidCode, msgInvalidCode, err)
	}
	if err != nil {
		return s.internal("consume code", err)
	}
	return nil
}

func (s *Service) setPassword(ctx context.Context, user *User, kind CodeKind, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return s.internal("hash password", err)
	}
	return s.consume(ctx, user, kind, UserPatch{PasswordHash: &hash})
}

func (s *Service) sendCode(ctx context.Context, user *User, kind CodeKind, code, locale string) error {
	ctx, cancel := context.WithTimeout(ctx, s.externalTimeout)
	defer cancel()

	err := s.mailer.SendCode(ctx, CodeEmail{
		To:        user.Email,
		Name:      user.Name,
		Code:      code,
		Kind:      kind,
		Locale:    locale,
		ExpiresIn: s.codes.ExpiryFrom(time.Time{}).Sub(time.Time{}),
	})
	if err != nil {
		s.log.Error("send code email failed", zap.String("user_id", user.ID), zap.String("kind", string(kind)), zap.Error(err))
		return wrapError(KindExternalService, "Unable to send email right now", err)
	}
	return nil
}

func (s *Service) uploadPhoto(ctx context.Context, photo Photo) (string, error) {
	if s.photos == nil {
		return "", errors.New("photo storage is not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, s.externalTimeout)
	defer cancel()
	return s.photos.Upload(ctx, photo)
}

func (s *Service) session(user *User) (*SessionResult, error) {
	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, s.internal("issue token", err)
	}
	return &SessionResult{Token: token, User: user.Public()}, nil
}

func (s *Service) internal(op string, err error) error {
	s.log.Error(op+" failed", zap.Error(err))
	return wrapError(KindInternal, "Something went wrong", err)
}

// signupBlocked rejects signup over an account that is Google-only or already verified.
func signupBlocked(existing *User) error {
	if existing == nil {
		return nil
	}
	if existing.GoogleOnly() {
		return newError(KindAccountLinkConflict, msgGoogleOnlySignup)
	}
	if existing.IsVerified {
		return newError(KindAlreadyExists, "Email already exists")
	}
	return nil
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func fallbackAvatar(name string) string {
	return "https://ui-avatars.com/api/?name=" + strings.ReplaceAll(url.QueryEscape(name), "+", "%20") + "&background=random"
}
