package api

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/Tiliavir/entrylog/internal/storage"
)

// TokenStore persists the console session token on disk.
type TokenStore struct {
	path string
}

// NewTokenStore stores the token at path.
func NewTokenStore(path string) *TokenStore {
	return &TokenStore{path: path}
}

// DefaultTokenStore stores the token at ~/.elog/auth/token.json.
func DefaultTokenStore() (*TokenStore, error) {
	base, err := storage.BaseDir()
	if err != nil {
		return nil, err
	}
	return NewTokenStore(filepath.Join(base, "auth", "token.json")), nil
}

// Path returns the token file location.
func (s *TokenStore) Path() string { return s.path }

// Load returns the stored token, or nil when nobody is signed in.
func (s *TokenStore) Load() (*oauth2.Token, error) {
	var tok oauth2.Token
	found, err := storage.LoadJSON(s.path, &tok)
	if err != nil {
		return nil, fmt.Errorf("reading token (run `elog login` to re-authenticate): %w", err)
	}
	if !found || tok.AccessToken == "" {
		return nil, nil
	}
	return &tok, nil
}

// Save persists tok with owner-only permissions.
func (s *TokenStore) Save(tok *oauth2.Token) error {
	if err := storage.SaveJSON(s.path, tok); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}
	return nil
}

// Clear signs out by removing the stored token.
func (s *TokenStore) Clear() error {
	return storage.Remove(s.path)
}

// Session summarizes the stored token for display.
type Session struct {
	SignedIn bool
	Subject  string
	Expiry   time.Time // zero when the token carries no expiry
}

// Expired reports whether the session has passed its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return !s.Expiry.IsZero() && !now.Before(s.Expiry)
}

// Require returns the stored session, or ErrNotAuthenticated or
// ErrSessionExpired when it cannot be used.
func (s *TokenStore) Require(now time.Time) (Session, error) {
	sess, err := s.Session()
	if err != nil {
		return Session{}, err
	}
	if !sess.SignedIn {
		return Session{}, ErrNotAuthenticated
	}
	if sess.Expired(now) {
		return sess, ErrSessionExpired
	}
	return sess, nil
}

// Session describes the stored token without validating its signature.
func (s *TokenStore) Session() (Session, error) {
	tok, err := s.Load()
	if err != nil || tok == nil {
		return Session{}, err
	}
	claims := readClaims(tok.AccessToken)
	return Session{SignedIn: true, Subject: claims.Subject, Expiry: tok.Expiry}, nil
}

// readClaims decodes the access token's registered claims. The console cannot
// verify the signature; the backend does that on every request.
func readClaims(accessToken string) jwt.RegisteredClaims {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims); err != nil {
		return jwt.RegisteredClaims{}
	}
	return claims
}

// newToken wraps backend-issued tokens, taking the expiry from the access
// token's exp claim when present.
func newToken(access, refresh string) *oauth2.Token {
	tok := &oauth2.Token{AccessToken: access, RefreshToken: refresh, TokenType: "Bearer"}
	if exp := readClaims(access).ExpiresAt; exp != nil {
		tok.Expiry = exp.Time
	}
	return tok
}

// storedTokenSource hands out the stored token until it expires. The backend
// offers no refresh grant, so an expired token ends the session.
type storedTokenSource struct {
	tok *oauth2.Token
}

func (s *storedTokenSource) Token() (*oauth2.Token, error) {
	if !s.tok.Valid() {
		return nil, ErrSessionExpired
	}
	return s.tok, nil
}

// NewHTTPClient returns an HTTP client that attaches the stored bearer token
// to every request. Without a stored token the client is unauthenticated and
// the backend decides what to allow.
func NewHTTPClient(ctx context.Context, store *TokenStore, timeout time.Duration) (*http.Client, error) {
	tok, err := store.Load()
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return &http.Client{Timeout: timeout}, nil
	}
	hc := oauth2.NewClient(ctx, &storedTokenSource{tok: tok})
	hc.Timeout = timeout
	return hc, nil
}
