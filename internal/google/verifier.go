// Package google verifies Google sign-in assertions for the auth service.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/idtoken"
	"google.golang.org/api/option"

	"followmate/internal/auth"
)

const DefaultUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

// TokenValidator is satisfied by *idtoken.Validator.
type TokenValidator interface {
	Validate(ctx context.Context, idToken, audience string) (*idtoken.Payload, error)
}

type Verifier struct {
	ClientID    string
	Validator   TokenValidator
	HTTPClient  *http.Client
	UserInfoURL string
}

// NewVerifier builds a Verifier whose ID token validator caches Google's
// signing keys for the life of the process.
func NewVerifier(ctx context.Context, clientID string, httpClient *http.Client) (*Verifier, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	validator, err := idtoken.NewValidator(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("google id token validator: %w", err)
	}
	return &Verifier{
		ClientID:    clientID,
		Validator:   validator,
		HTTPClient:  httpClient,
		UserInfoURL: DefaultUserInfoURL,
	}, nil
}

func (v *Verifier) VerifyIDToken(ctx context.Context, credential string) (*auth.GoogleProfile, error) {
	if v.ClientID == "" {
		return nil, errors.New("google client id is not configured")
	}
	payload, err := v.Validator.Validate(ctx, credential, v.ClientID)
	if err != nil {
		return nil, fmt.Errorf("validate id token: %w", err)
	}

	profile := &auth.GoogleProfile{
		SubjectID:  payload.Subject,
		Email:      claimString(payload.Claims, "email"),
		Name:       claimString(payload.Claims, "name"),
		PictureURL: claimString(payload.Claims, "picture"),
	}
	if profile.Email == "" {
		return nil, errors.New("id token has no email claim")
	}
	if claimFalse(payload.Claims, "email_verified") {
		return nil, errors.New("google email is not verified")
	}
	return profile, nil
}

type userInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified *bool  `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (v *Verifier) FetchUserInfo(ctx context.Context, accessToken string) (*auth.GoogleProfile, error) {
	if v.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, v.HTTPClient)
	}
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))

	endpoint := v.UserInfoURL
	if endpoint == "" {
		endpoint = DefaultUserInfoURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("userinfo status %d", resp.StatusCode)
	}

	var data userInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	if data.Email == "" {
		return nil, errors.New("userinfo has no email")
	}
	if data.EmailVerified != nil && !*data.EmailVerified {
		return nil, errors.New("google email is not verified")
	}
	return &auth.GoogleProfile{
		SubjectID:  data.Sub,
		Email:      data.Email,
		Name:       data.Name,
		PictureURL: data.Picture,
	}, nil
}

func claimString(claims map[string]interface{}, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

// claimFalse reports whether key is present and false. Older tokens carry it as a string.
func claimFalse(claims map[string]interface{}, key string) bool {
	switch v := claims[key].(type) {
	case bool:
		return !v
	case string:
		return strings.EqualFold(v, "false")
	default:
		return false
	}
}
