package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []CodeEmail
	err  error
}

func (m *fakeMailer) SendCode(_ context.Context, msg CodeEmail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) last(t *testing.T) CodeEmail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "no email sent")
	return m.sent[len(m.sent)-1]
}

type fakeGoogle struct {
	profile   *GoogleProfile
	err       error
	idCalls   int
	infoCalls int
}

func (g *fakeGoogle) VerifyIDToken(_ context.Context, _ string) (*GoogleProfile, error) {
	g.idCalls++
	if g.err != nil {
		return nil, g.err
	}
	p := *g.profile
	return &p, nil
}

func (g *fakeGoogle) FetchUserInfo(_ context.Context, _ string) (*GoogleProfile, error) {
	g.infoCalls++
	if g.err != nil {
		return nil, g.err
	}
	p := *g.profile
	return &p, nil
}

type fakeUploader struct {
	url   string
	err   error
	calls int
}

func (u *fakeUploader) Upload(_ context.Context, _ Photo) (string, error) {
	u.calls++
	if u.err != nil {
		return "", u.err
	}
	return u.url, nil
}

type harness struct {
	svc    *Service
	store  *MemoryUserStore
	clock  *fakeClock
	mailer *fakeMailer
	google *fakeGoogle
	photos *fakeUploader
	tokens *TokenIssuer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithStore(t, nil)
}

func newHarnessWithStore(t *testing.T, users UserStore) *harness {
	t.Helper()

	h := &harness{
		store:  NewMemoryUserStore(),
		clock:  &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)},
		mailer: &fakeMailer{},
		google: &fakeGoogle{profile: &GoogleProfile{
			Email:      "g@x.com",
			Name:       "Gina",
			SubjectID:  "google-sub-1",
			PictureURL: "https://lh3.googleusercontent.com/g.png",
		}},
		photos: &fakeUploader{url: "https://cdn.example.com/follow-mate/p.png"},
	}
	h.store.now = h.clock.Now
	if users == nil {
		users = h.store
	}

	tokens, err := NewTokenIssuer("test-secret", DefaultTokenTTL)
	require.NoError(t, err)
	tokens.now = h.clock.Now
	h.tokens = tokens

	svc, err := NewService(ServiceDeps{
		Users:  users,
		Hasher: NewBcryptHasher(bcrypt.MinCost),
		Tokens: tokens,
		Codes:  NewNumericCodes(DefaultCodeTTL),
		Mailer: h.mailer,
		Photos: h.photos,
		Google: h.google,
		Now:    h.clock.Now,
	})
	require.NoError(t, err)
	h.svc = svc
	return h
}

func (h *harness) signup(t *testing.T, email, password string) (string, string) {
	t.Helper()
	id, err := h.svc.Signup(context.Background(), SignupInput{Name: "Ada Lovelace", Email: email, Password: password})
	require.NoError(t, err)
	msg := h.mailer.last(t)
	require.Equal(t, CodeVerification, msg.Kind)
	return id, msg.Code
}

func (h *harness) verifiedUser(t *testing.T, email, password string) string {
	t.Helper()
	id, code := h.signup(t, email, password)
	require.NoError(t, h.svc.VerifyEmail(context.Background(), id, code))
	return id
}

func requireKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, KindOf(err), "error: %v", err)
}

func TestSignupVerifyLoginScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	id, code := h.signup(t, "A@x.com", "longenough1")
	assert.Len(t, code, CodeLength)

	stored, err := h.store.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", stored.Email)
	assert.False(t, stored.IsVerified)
	require.NotNil(t, stored.VerificationCode)
	assert.NotEqual(t, code, stored.VerificationCode.Hash)

	require.NoError(t, h.svc.VerifyEmail(ctx, id, code))

	stored, err = h.store.FindByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, stored.IsVerified)
	assert.Nil(t, stored.VerificationCode)

	res, err := h.svc.Login(ctx, LoginInput{Email: "a@x.com", Password: "longenough1"})
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)
	assert.Equal(t, id, res.User.ID)
	assert.True(t, res.User.HasPassword)

	claims, err := h.tokens.Verify(res.Token)
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID)
	assert.Equal(t, "a@x.com", claims.Email)

	res, err = h.svc.Login(ctx, LoginInput{Email: "a@x.com", Password: "wrong-password"})
	requireKind(t, err, KindInvalidCredentials)
	assert.Nil(t, res)
}

func TestVerifyEmail_RejectsExpiredCode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id, code := h.signup(t, "a@x.com", "longenough1")

	h.clock.Advance(DefaultCodeTTL + time.Second)

	err := h.svc.VerifyEmail(ctx, id, code)
	requireKind(t, err, KindCodeExpired)
	assert.Equal(t, "Verification code expired", PublicMessage(err))

	stored, err := h.store.FindByID(ctx, id)
	require.NoError(t, err)
	assert.False(t, stored.IsVerified)
	assert.Nil(t, stored.VerificationCode, "expired code should be cleared")
}

func TestVerifyEmail_AcceptsCodeAtExpiryInstant(t *testing.T) {
	h := newHarness(t)
	id, code := h.signup(t, "a@x.com", "longenough1")

	h.clock.Advance(DefaultCodeTTL)

	require.NoError(t, h.svc.VerifyEmail(context.Background(), id, code))
}

func TestVerifyEmail_MismatchAndTrim(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id, code := h.signup(t, "a@x.com", "longenough1")

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	requireKind(t, h.svc.VerifyEmail(ctx, id, wrong), KindInvalidCode)
	requireKind(t, h.svc.VerifyEmail(ctx, "", code), KindValidation)
	requireKind(t, h.svc.VerifyEmail(ctx, "missing-user", code), KindNotFound)

	require.NoError(t, h.svc.VerifyEmail(ctx, id, "  "+code+"\n"))
}

func TestConsumedCodesCannotBeReplayed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	id, code := h.signup(t, "a@x.com", "longenough1")
	require.NoError(t, h.svc.VerifyEmail(ctx, id, code))
	requireKind(t, h.svc.VerifyEmail(ctx, id, code), KindInvalidCode)

	_, err := h.svc.ForgotPassword(ctx, "a@x.com", "en")
	require.NoError(t, err)
	reset := h.mailer.last(t).Code
	require.NoError(t, h.svc.ResetPassword(ctx, ResetPasswordInput{UserID: id, Code: reset, Password: "brand-new-pass"}))
	requireKind(t, h.svc.ResetPassword(ctx, ResetPasswordInput{UserID: id, Code: reset, Password: "another-pass"}), KindInvalidCode)

	_, err = h.svc.RequestChangePassword(ctx, id, "en")
	require.NoError(t, err)
	change := h.mailer.last(t).Code
	require.NoError(t, h.svc.ChangePassword(ctx, ChangePasswordInput{UserID: id, Code: change, NewPassword: "changed-pass-1"}))
	requireKind(t, h.svc.ChangePassword(ctx, ChangePasswordInput{UserID: id, Code: change, NewPassword: "changed-pass-2"}), KindInvalidCode)
}

func TestLogin_DistinctFailureModes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.signup(t, "unverified@x.com", "longenough1")
	h.verifiedUser(t, "verified@x.com", "longenough1")
	_, err := h.svc.GoogleAuth(ctx, GoogleAuthInput{Credential: "id-token"})
	require.NoError(t, err)

	_, err = h.svc.Login(ctx, LoginInput{Email: "unverified@x.com", Password: "longenough1"})
	requireKind(t, err, KindEmailNotVerified)

	_, err = h.svc.Login(ctx, LoginInput{Email: "g@x.com", Password: "longenough1"})
	requireKind(t, err, KindAccountLinkConflict)

	_, err = h.svc.Login(ctx, LoginInput{Email: "verified@x.com", Password: "not-the-password"})
	requireKind(t, err, KindInvalidCredentials)

	_, err = h.svc.Login(ctx, LoginInput{Email: "nobody@x.com", Password: "longenough1"})
	requireKind(t, err, KindNotFound)

	_, err = h.svc.Login(ctx, LoginInput{Email: "verified@x.com"})
	requireKind(t, err, KindValidation)
}

func TestGoogleAuth_CreatesVerifiedPasswordlessAccount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.svc.GoogleAuth(ctx, GoogleAuthInput{Credential: "id-token"})
	require.NoError(t, err)
	assert.Equal(t, 1, h.google.idCalls)
	assert.NotEmpty(t, res.Token)
	assert.True(t, res.User.IsVerified)
	assert.True(t, res.User.GoogleLinked)
	assert.False(t, res.User.HasPassword)
	require.NotNil(t, res.User.ProfilePhoto)
	assert.Equal(t, "https://lh3.googleusercontent.com/g.png", *res.User.ProfilePhoto)

	stored, err := h.store.FindByEmail(ctx, "g@x.com", WithPasswordHash())
	require.NoError(t, err)
	assert.Nil(t, stored.PasswordHash)
	require.NotNil(t, stored.GoogleSubjectID)
	assert.Equal(t, "google-sub-1", *stored.GoogleSubjectID)
	assert.True(t, stored.GoogleOnly())
}

func TestGoogleAuth_LinksExistingPasswordAccount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.google.profile.Email = "A@x.com"

	id := h.verifiedUser(t, "a@x.com", "longenough1")
	before, err := h.store.FindByID(ctx, id, WithPasswordHash())
	require.NoError(t, err)

	res, err := h.svc.GoogleAuth(ctx, GoogleAuthInput{AccessToken: "ya29.token"})
	require.NoError(t, err)
	assert.Equal(t, 1, h.google.infoCalls)
	assert.Equal(t, id, res.User.ID)

	after, err := h.store.FindByID(ctx, id, WithPasswordHash())
	require.NoError(t, err)
	require.NotNil(t, after.GoogleSubjectID)
	assert.Equal(t, "google-sub-1", *after.GoogleSubjectID)
	assert.Equal(t, *before.PasswordHash, *after.PasswordHash)
	assert.Equal(t, before.IsVerified, after.IsVerified)
	assert.Equal(t, "https://lh3.googleusercontent.com/g.png", *after.ProfilePhotoURL)

	login, err := h.svc.Login(ctx, LoginInput{Email: "a@x.com", Password: "longenough1"})
	require.NoError(t, err)
	assert.True(t, login.User.GoogleLinked)
}

func TestGoogleAuth_KeepsUnverifiedStateAndCodes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.google.profile.Email = "a@x.com"
	h.google.profile.PictureURL = ""

	id, code := h.signup(t, "a@x.com", "longenough1")
	before, err := h.store.FindByID(ctx, id)
	require.NoError(t, err)

	_, err = h.svc.GoogleAuth(ctx, GoogleAuthInput{Credential: "id-token"})
	require.NoError(t, err)

	after, err := h.store.FindByID(ctx, id)
	require.NoError(t, err)
	assert.False(t, after.IsVerified)
	assert.Equal(t, before.VerificationCode, after.VerificationCode)
	assert.Equal(t, before.ProfilePhotoURL, after.ProfilePhotoURL)
	require.NoError(t, h.svc.VerifyEmail(ctx, id, code))
}

func TestGoogleAuth_InputAndVerifierFailures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.GoogleAuth(ctx, GoogleAuthInput{})
	requireKind(t, err, KindValidation)
	assert.Equal(t, "Missing Google credential", PublicMessage(err))

	_, err = h.svc.GoogleAuth(ctx, GoogleAuthInput{Credential: "a", AccessToken: "b"})
	requireKind(t, err, KindValidation)

	h.google.err = errors.New("token audience mismatch: secret-detail")
	_, err = h.svc.GoogleAuth(ctx, GoogleAuthInput{Credential: "bad"})
	requireKind(t, err, KindGoogleAuthFailed)
	assert.Equal(t, "Google authentication failed", PublicMessage(err))
	assert.NotContains(t, PublicMessage(err), "secret-detail")

	h.google.err = nil
	h.google.profile.Email = ""
	_, err = h.svc.GoogleAuth(ctx, GoogleAuthInput{AccessToken: "ya29"})
	requireKind(t, err, KindGoogleAuthFailed)
}

type racingStore struct {
	*MemoryUserStore
}

// Create simulates a concurrent first sign-in that inserts the same email first.
func (r racingStore) Create(ctx context.Context, nu NewUser) (*User, error) {
	winner := nu
	winner.GoogleSubjectID = nil
	if _, err := r.MemoryUserStore.Create(ctx, winner); err != nil {
		return nil, err
	}
	return nil, ErrDuplicateIdentity
}

func TestGoogleAuth_LinksAfterLosingCreateRace(t *testing.T) {
	base := NewMemoryUserStore()
	h := newHarnessWithStore(t, racingStore{base})

	res, err := h.svc.GoogleAuth(context.Background(), GoogleAuthInput{Credential: "id-token"})
	require.NoError(t, err)
	assert.True(t, res.User.GoogleLinked)

	stored, err := base.FindByEmail(context.Background(), "g@x.com")
	require.NoError(t, err)
	require.NotNil(t, stored.GoogleSubjectID)
	assert.Equal(t, "google-sub-1", *stored.GoogleSubjectID)
}

// verifiedRacingStore is racingStore with a winner that is already verified.
type verifiedRacingStore struct {
	*MemoryUserStore
}

func (r verifiedRacingStore) Create(ctx context.Context, nu NewUser) (*User, error) {
	winner := nu
	winner.IsVerified = true
	winner.Codes = nil
	if _, err := r.MemoryUserStore.Create(ctx, winner); err != nil {
		return nil, err
	}
	return nil, ErrDuplicateIdentity
}

func TestSignup_LosingCreateRaceToUnverifiedSignup(t *testing.T) {
	base := NewMemoryUserStore()
	h := newHarnessWithStore(t, racingStore{base})
	ctx := context.Background()

	userID, err := h.svc.Signup(ctx, SignupInput{Name: "Ada", Email: "a@x.com", Password: "longenough1"})
	require.NoError(t, err)

	stored, err := base.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, stored.ID, userID)
	assert.False(t, stored.IsVerified)

	msg := h.mailer.last(t)
	require.NoError(t, h.svc.VerifyEmail(ctx, userID, msg.Code))
}

func TestSignup_LosingCreateRaceToVerifiedAccount(t *testing.T) {
	base := NewMemoryUserStore()
	h := newHarnessWithStore(t, verifiedRacingStore{base})

	_, err := h.svc.Signup(context.Background(), SignupInput{Name: "Ada", Email: "a@x.com", Password: "longenough1"})
	requireKind(t, err, KindAlreadyExists)
	assert.Empty(t, h.mailer.sent)
}

func TestForgotResetScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.verifiedUser(t, "a@x.com", "longenough1")

	userID, err := h.svc.ForgotPassword(ctx, "A@X.com", "en")
	require.NoError(t, err)
	assert.Equal(t, id, userID)
	msg := h.mailer.last(t)
	assert.Equal(t, CodeReset, msg.Kind)
	assert.Equal(t, DefaultCodeTTL, msg.ExpiresIn)

	wrong := "000000"
	if msg.Code == wrong {
		wrong = "999999"
	}
	requireKind(t, h.svc.VerifyResetCode(ctx, id, wrong), KindInvalidCode)
	require.NoError(t, h.svc.VerifyResetCode(ctx, id, msg.Code))
	require.NoError(t, h.svc.VerifyResetCode(ctx, id, msg.Code), "verifying does not consume")

	require.NoError(t, h.svc.ResetPassword(ctx, ResetPasswordInput{UserID: id, Code: msg.Code, Password: "new-password-1"}))

	_, err = h.svc.Login(ctx, LoginInput{Email: "a@x.com", Password: "longenough1"})
	requireKind(t, err, KindInvalidCredentials)
	res, err := h.svc.Login(ctx, LoginInput{Email: "a@x.com", Password: "new-password-1"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)

	stored, err := h.store.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, stored.ResetCode)
}

func TestResetPassword_ValidatesBeforeConsuming(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.verifiedUser(t, "a@x.com", "longenough1")
	_, err := h.svc.ForgotPassword(ctx, "a@x.com", "en")
	require.NoError(t, err)
	code := h.mailer.last(t).Code

	requireKind(t, h.svc.ResetPassword(ctx, ResetPasswordInput{UserID: id, Code: code, Password: "short"}), KindWeakPassword)
	requireKind(t, h.svc.ResetPassword(ctx, ResetPasswordInput{UserID: id, Code: code}), KindValidation)
	requireKind(t, h.svc.ResetPassword(ctx, ResetPasswordInput{UserID: "nope", Code: code, Password: "long-enough"}), KindInvalidCode)

	h.clock.Advance(DefaultCodeTTL + time.Minute)
	err = h.svc.ResetPassword(ctx, ResetPasswordInput{UserID: id, Code: code, Password: "long-enough"})
	requireKind(t, err, KindCodeExpired)
	assert.Equal(t, "Reset code expired", PublicMessage(err))
}

func TestGoogleOnlyAccountsCannotUsePasswordFlows(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res, err := h.svc.GoogleAuth(ctx, GoogleAuthInput{Credential: "id-token"})
	require.NoError(t, err)

	_, err = h.svc.ForgotPassword(ctx, "g@x.com", "en")
	requireKind(t, err, KindAccountLinkConflict)

	_, err = h.svc.RequestChangePassword(ctx, res.User.ID, "en")
	requireKind(t, err, KindAccountLinkConflict)

	_, err = h.svc.Signup(ctx, SignupInput{Name: "G", Email: "g@x.com", Password: "longenough1"})
	requireKind(t, err, KindAccountLinkConflict)
	assert.Contains(t, PublicMessage(err), "linked to Google")
}

func TestChangePassword_RejectsShortPasswordWithValidCode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.verifiedUser(t, "a@x.com", "longenough1")

	userID, err := h.svc.RequestChangePassword(ctx, id, "en")
	require.NoError(t, err)
	assert.Equal(t, id, userID)
	code := h.mailer.last(t).Code

	err = h.svc.ChangePassword(ctx, ChangePasswordInput{UserID: id, Code: code, NewPassword: "1234567"})
	requireKind(t, err, KindWeakPassword)
	assert.Equal(t, "Password must be at least 8 characters", PublicMessage(err))

	require.NoError(t, h.svc.VerifyChangePasswordCode(ctx, id, code), "code survives a rejected change")
	require.NoError(t, h.svc.ChangePassword(ctx, ChangePasswordInput{UserID: id, Code: code, NewPassword: "12345678"}))

	_, err = h.svc.Login(ctx, LoginInput{Email: "a@x.com", Password: "12345678"})
	require.NoError(t, err)
}

func TestVerifyChangePasswordCode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.verifiedUser(t, "a@x.com", "longenough1")

	requireKind(t, h.svc.VerifyChangePasswordCode(ctx, id, ""), KindValidation)
	requireKind(t, h.svc.VerifyChangePasswordCode(ctx, id, "123456"), KindInvalidCode)

	_, err := h.svc.RequestChangePassword(ctx, id, "de")
	require.NoError(t, err)
	msg := h.mailer.last(t)
	assert.Equal(t, "de", msg.Locale)

	h.clock.Advance(time.Hour)
	err = h.svc.VerifyChangePasswordCode(ctx, id, msg.Code)
	requireKind(t, err, KindCodeExpired)
	assert.Equal(t, "Change password code expired, request a new code", PublicMessage(err))
}

func TestSignup_ExistingAccounts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.verifiedUser(t, "taken@x.com", "longenough1")
	_, err := h.svc.Signup(ctx, SignupInput{Name: "B", Email: "TAKEN@x.com", Password: "longenough1"})
	requireKind(t, err, KindAlreadyExists)

	id, first := h.signup(t, "pending@x.com", "longenough1")
	again, err := h.svc.Signup(ctx, SignupInput{Name: "Renamed", Email: "pending@x.com", Password: "another-pass"})
	require.NoError(t, err)
	assert.Equal(t, id, again)
	second := h.mailer.last(t).Code

	stored, err := h.store.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", stored.Name)
	if first != second {
		requireKind(t, h.svc.VerifyEmail(ctx, id, first), KindInvalidCode)
	}
	require.NoError(t, h.svc.VerifyEmail(ctx, id, second))

	_, err = h.svc.Login(ctx, LoginInput{Email: "pending@x.com", Password: "another-pass"})
	require.NoError(t, err)
}

func TestSignup_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	cases := []struct {
		name string
		in   SignupInput
		kind Kind
	}{
		{"missing name", SignupInput{Email: "a@x.com", Password: "longenough1"}, KindValidation},
		{"missing email", SignupInput{Name: "A", Password: "longenough1"}, KindValidation},
		{"bad email", SignupInput{Name: "A", Email: "not-an-email", Password: "longenough1"}, KindValidation},
		{"short password", SignupInput{Name: "A", Email: "a@x.com", Password: "short"}, KindWeakPassword},
		{"password over bcrypt limit", SignupInput{Name: "A", Email: "a@x.com", Password: strings.Repeat("p", 80)}, KindValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.svc.Signup(ctx, tc.in)
			requireKind(t, err, tc.kind)
		})
	}
	assert.Empty(t, h.mailer.sent)
}

func TestSignup_Photo(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	id, err := h.svc.Signup(ctx, SignupInput{Name: "Ada Lovelace", Email: "a@x.com", Password: "longenough1"})
	require.NoError(t, err)
	stored, err := h.store.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "https://ui-avatars.com/api/?name=Ada%20Lovelace&background=random", *stored.ProfilePhotoURL)
	assert.Zero(t, h.photos.calls)

	photo := &Photo{Filename: "me.png", ContentType: "image/png", Size: 3, Body: strings.NewReader("png")}
	id, err = h.svc.Signup(ctx, SignupInput{Name: "Bo", Email: "b@x.com", Password: "longenough1", Photo: photo})
	require.NoError(t, err)
	stored, err = h.store.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, h.photos.url, *stored.ProfilePhotoURL)

	h.photos.err = errors.New("bucket unavailable")
	_, err = h.svc.Signup(ctx, SignupInput{Name: "Cy", Email: "c@x.com", Password: "longenough1", Photo: photo})
	requireKind(t, err, KindExternalService)
	assert.Equal(t, "Image upload failed", PublicMessage(err))
	missing, err := h.store.FindByEmail(ctx, "c@x.com")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSignup_MailFailureKeepsCode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.mailer.err = errors.New("smtp down")

	_, err := h.svc.Signup(ctx, SignupInput{Name: "A", Email: "a@x.com", Password: "longenough1"})
	requireKind(t, err, KindExternalService)

	stored, err := h.store.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.NotNil(t, stored.VerificationCode)

	h.mailer.err = nil
	userID, err := h.svc.ResendVerification(ctx, "a@x.com", "en")
	require.NoError(t, err)
	assert.Equal(t, stored.ID, userID)
	require.NoError(t, h.svc.VerifyEmail(ctx, userID, h.mailer.last(t).Code))
}

func TestResendVerification(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.ResendVerification(ctx, "", "en")
	requireKind(t, err, KindValidation)
	_, err = h.svc.ResendVerification(ctx, "nobody@x.com", "en")
	requireKind(t, err, KindNotFound)

	h.verifiedUser(t, "done@x.com", "longenough1")
	_, err = h.svc.ResendVerification(ctx, "done@x.com", "en")
	requireKind(t, err, KindAlreadyVerified)
}

func TestUpdateProfilePhoto(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.verifiedUser(t, "a@x.com", "longenough1")

	_, err := h.svc.UpdateProfilePhoto(ctx, id, nil)
	requireKind(t, err, KindValidation)

	photo := &Photo{Filename: "me.jpg", ContentType: "image/jpeg", Size: 4, Body: strings.NewReader("jpeg")}
	user, err := h.svc.UpdateProfilePhoto(ctx, id, photo)
	require.NoError(t, err)
	assert.Equal(t, h.photos.url, *user.ProfilePhoto)

	_, err = h.svc.UpdateProfilePhoto(ctx, "missing", photo)
	requireKind(t, err, KindNotFound)

	h.photos.err = errors.New("timeout")
	_, err = h.svc.UpdateProfilePhoto(ctx, id, photo)
	requireKind(t, err, KindExternalService)
	assert.Equal(t, "Unable to update profile photo right now", PublicMessage(err))
}

func TestErrorsMatchByKind(t *testing.T) {
	h := newHarness(t)
	id, _ := h.signup(t, "a@x.com", "longenough1")

	err := h.svc.VerifyEmail(context.Background(), id, "bogus")
	assert.True(t, errors.Is(err, &Error{Kind: KindInvalidCode}))
	assert.False(t, errors.Is(err, &Error{Kind: KindCodeExpired}))
}
