// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/url"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/spotauth/internal/models"
	"github.com/desertthunder/spotauth/internal/services"
	"golang.org/x/oauth2"
)

// MockOAuthService is a test double for [services.OAuthService].
//
// Exchange returns Token, Refresh returns Refreshed and UserProfile returns User. Set the *Err fields to make a
// call fail.
type MockOAuthService struct {
	AuthBase string

	Token       *oauth2.Token
	ExchangeErr error

	Refreshed  *oauth2.Token
	RefreshErr error

	User       *services.SpotifyUser
	ProfileErr error

	mu            sync.Mutex
	exchangeCalls int
	refreshCalls  int
	profileCalls  int
}

// NewMockOAuthService returns a mock issuing access-1/refresh-1 for user "spotify-user".
func NewMockOAuthService() *MockOAuthService {
	return &MockOAuthService{
		AuthBase:  "https://accounts.example.com/authorize",
		Token:     &oauth2.Token{AccessToken: "access-1", RefreshToken: "refresh-1", TokenType: "Bearer"},
		Refreshed: &oauth2.Token{AccessToken: "access-2", RefreshToken: "refresh-1", TokenType: "Bearer"},
		User:      &services.SpotifyUser{ID: "spotify-user", DisplayName: "Test User"},
	}
}

func (m *MockOAuthService) AuthURL(state string) string {
	return m.AuthBase + "?" + url.Values{"state": {state}, "response_type": {"code"}}.Encode()
}

func (m *MockOAuthService) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	m.mu.Lock()
	m.exchangeCalls++
	m.mu.Unlock()

	if m.ExchangeErr != nil {
		return nil, m.ExchangeErr
	}
	return m.Token, nil
}

func (m *MockOAuthService) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	m.mu.Lock()
	m.refreshCalls++
	m.mu.Unlock()

	if m.RefreshErr != nil {
		return nil, m.RefreshErr
	}
	return m.Refreshed, nil
}

func (m *MockOAuthService) UserProfile(ctx context.Context, token *oauth2.Token) (*services.SpotifyUser, error) {
	m.mu.Lock()
	m.profileCalls++
	m.mu.Unlock()

	if m.ProfileErr != nil {
		return nil, m.ProfileErr
	}
	return m.User, nil
}

func (m *MockOAuthService) Name() string { return "mock" }

// ExchangeCalls reports how many times Exchange was called.
func (m *MockOAuthService) ExchangeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exchangeCalls
}

// RefreshCalls reports how many times Refresh was called.
func (m *MockOAuthService) RefreshCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshCalls
}

// ProfileCalls reports how many times UserProfile was called.
func (m *MockOAuthService) ProfileCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profileCalls
}

// MockCredentialStore records created credentials in memory.
type MockCredentialStore struct {
	Err error

	mu          sync.Mutex
	credentials []*models.Credential
}

func (s *MockCredentialStore) Create(ctx context.Context, credential *models.Credential) error {
	if s.Err != nil {
		return s.Err
	}
	if err := credential.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.credentials = append(s.credentials, credential)
	return nil
}

// Credentials returns a copy of everything stored so far.
func (s *MockCredentialStore) Credentials() []*models.Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.Credential(nil), s.credentials...)
}

// MockPinger returns Err from every ping.
type MockPinger struct {
	Err error
}

func (p *MockPinger) PingContext(ctx context.Context) error {
	return p.Err
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
