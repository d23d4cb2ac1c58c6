package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sticker-album-backend/internal/config"
	"sticker-album-backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const (
	googleAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenURL    = "https://oauth2.googleapis.com/token"
	googleUserinfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
)

// GoogleAuthenticator implements the Google sign-in handoff: consent URL
// generation, code exchange and account upsert keyed by email.
type GoogleAuthenticator struct {
	httpClient   *http.Client
	users        UserStore
	tokens       *UserService
	clientID     string
	clientSecret string
	redirectURL  string
}

// NewGoogleAuthenticator creates a Google OAuth handler from configuration.
func NewGoogleAuthenticator(cfg config.OAuthConfig, users UserStore, tokens *UserService) *GoogleAuthenticator {
	return &GoogleAuthenticator{
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		users:        users,
		tokens:       tokens,
		clientID:     cfg.GoogleClientID,
		clientSecret: cfg.GoogleClientSecret,
		redirectURL:  cfg.GoogleRedirectURL,
	}
}

// Enabled reports whether Google sign-in is configured.
func (g *GoogleAuthenticator) Enabled() bool {
	return g.clientID != "" && g.clientSecret != "" && g.redirectURL != ""
}

// ConsentURL builds the Google consent-screen URL for the given state.
func (g *GoogleAuthenticator) ConsentURL(state string) string {
	q := url.Values{}
	q.Set("client_id", g.clientID)
	q.Set("redirect_uri", g.redirectURL)
	q.Set("response_type", "code")
	q.Set("scope", "openid email profile")
	q.Set("state", state)
	return googleAuthURL + "?" + q.Encode()
}

type googleProfile struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// Login exchanges an authorization code, loads the Google profile and
// signs the matching local account in, creating it on first login.
func (g *GoogleAuthenticator) Login(ctx context.Context, code string) (*models.User, *TokenPair, error) {
	if !g.Enabled() {
		return nil, nil, fmt.Errorf("google sign-in is not configured")
	}

	accessToken, err := g.exchangeCode(ctx, code)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to exchange code: %w", err)
	}
	profile, err := g.fetchProfile(ctx, accessToken)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load google profile: %w", err)
	}
	if profile.Email == "" {
		return nil, nil, fmt.Errorf("google profile has no email")
	}

	user, err := g.upsertUser(ctx, profile)
	if err != nil {
		return nil, nil, err
	}
	pair, err := g.tokens.GenerateTokenPair(user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

func (g *GoogleAuthenticator) exchangeCode(ctx context.Context, code string) (string, error) {
	form := url.Values{}
	form.Set("code", code)
	form.Set("client_id", g.clientID)
	form.Set("client_secret", g.clientSecret)
	form.Set("redirect_uri", g.redirectURL)
	form.Set("grant_type", "authorization_code")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, googleTokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("token endpoint status %d: %s", resp.StatusCode, snippet)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("token response has no access_token")
	}
	return payload.AccessToken, nil
}

func (g *GoogleAuthenticator) fetchProfile(ctx context.Context, accessToken string) (*googleProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, googleUserinfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("userinfo status %d: %s", resp.StatusCode, snippet)
	}

	var profile googleProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	return &profile, nil
}

// upsertUser finds the account matching the Google email or creates one
// with a random unusable password.
func (g *GoogleAuthenticator) upsertUser(ctx context.Context, profile *googleProfile) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(profile.Email))
	if user, err := g.users.GetByEmail(ctx, email); err == nil {
		return user, nil
	}

	username := profile.Name
	if username == "" {
		username = strings.SplitN(email, "@", 2)[0]
	}
	// Google accounts never log in by password; store a random hash so
	// the column is non-empty and the credential check always fails.
	hash, err := bcrypt.GenerateFromPassword([]byte(uuid.New().String()), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash placeholder password: %w", err)
	}

	now := time.Now()
	user := &models.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		AvatarURL:    profile.Picture,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := g.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	log.Info().Str("user_id", user.ID).Msg("Created account from google sign-in")
	return user, nil
}
