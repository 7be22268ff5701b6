package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"chat-relay/server/internal/security"
	userdomain "chat-relay/server/internal/user/domain"
)

type memUserRepo struct {
	mu         sync.Mutex
	byUsername map[string]*userdomain.User
	failWith   error // when set, every method returns this error
}

func (r *memUserRepo) GetByUsername(ctx context.Context, username string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	return r.byUsername[username], nil
}

func (r *memUserRepo) UpdateRefreshToken(ctx context.Context, userID, refreshTokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	for _, u := range r.byUsername {
		if u.ID == userID {
			u.RefreshTokenHash = refreshTokenHash
		}
	}
	return nil
}

func newTestService(t *testing.T, repo *memUserRepo) (*AuthService, *security.TokenProvider) {
	t.Helper()
	hasher := security.NewHasher(bcrypt.MinCost)
	tokens := security.NewTokenProvider([]byte("access-secret"), []byte("refresh-secret"), 15*time.Minute, 168*time.Hour)
	return NewAuthService(repo, hasher, tokens), tokens
}

func seedUser(t *testing.T, repo *memUserRepo, username, password string) *userdomain.User {
	t.Helper()
	hash, err := security.NewHasher(bcrypt.MinCost).Hash([]byte(password))
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := &userdomain.User{
		ID:           "user-" + username,
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	repo.byUsername[username] = u
	return u
}

func TestLogin_Success(t *testing.T) {
	repo := &memUserRepo{byUsername: map[string]*userdomain.User{}}
	seedUser(t, repo, "alice", "correctpw")
	svc, tokens := newTestService(t, repo)

	res, err := svc.Login(context.Background(), "alice", "correctpw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.AccessToken == "" {
		t.Error("AccessToken should not be empty")
	}
	if res.RefreshToken == "" {
		t.Error("RefreshToken should not be empty")
	}
	if res.Username != "alice" {
		t.Errorf("Username = %q, want alice", res.Username)
	}

	// Both tokens must verify and carry the same identity.
	if id, err := tokens.ValidateAccess(res.AccessToken); err != nil || id.UserID != res.UserID {
		t.Errorf("access token identity = %+v, err = %v", id, err)
	}
	if id, err := tokens.ValidateRefresh(res.RefreshToken); err != nil || id.UserID != res.UserID {
		t.Errorf("refresh token identity = %+v, err = %v", id, err)
	}
}

func TestLogin_PersistsRefreshHashOverwrite(t *testing.T) {
	repo := &memUserRepo{byUsername: map[string]*userdomain.User{}}
	u := seedUser(t, repo, "alice", "correctpw")
	svc, _ := newTestService(t, repo)

	res1, err := svc.Login(context.Background(), "alice", "correctpw")
	if err != nil {
		t.Fatalf("first Login: %v", err)
	}
	hash1 := u.RefreshTokenHash
	if !security.RefreshTokenHashEqual(res1.RefreshToken, hash1) {
		t.Error("stored hash should match the first refresh token")
	}

	res2, err := svc.Login(context.Background(), "alice", "correctpw")
	if err != nil {
		t.Fatalf("second Login: %v", err)
	}
	if security.RefreshTokenHashEqual(res1.RefreshToken, u.RefreshTokenHash) {
		t.Error("first refresh token hash should have been overwritten")
	}
	if !security.RefreshTokenHashEqual(res2.RefreshToken, u.RefreshTokenHash) {
		t.Error("stored hash should match the second refresh token")
	}
}

func TestLogin_FailuresIndistinguishable(t *testing.T) {
	repo := &memUserRepo{byUsername: map[string]*userdomain.User{}}
	seedUser(t, repo, "alice", "correctpw")
	svc, _ := newTestService(t, repo)

	_, errUnknown := svc.Login(context.Background(), "nobody", "correctpw")
	_, errWrongPw := svc.Login(context.Background(), "alice", "wrongpw")

	if !errors.Is(errUnknown, ErrInvalidCredentials) {
		t.Errorf("unknown user error = %v, want ErrInvalidCredentials", errUnknown)
	}
	if !errors.Is(errWrongPw, ErrInvalidCredentials) {
		t.Errorf("wrong password error = %v, want ErrInvalidCredentials", errWrongPw)
	}
	if errUnknown.Error() != errWrongPw.Error() {
		t.Errorf("failure cases must be indistinguishable: %q vs %q", errUnknown, errWrongPw)
	}
}

func TestLogin_EmptyInputs(t *testing.T) {
	repo := &memUserRepo{byUsername: map[string]*userdomain.User{}}
	seedUser(t, repo, "alice", "correctpw")
	svc, _ := newTestService(t, repo)

	for _, tc := range []struct{ name, username, password string }{
		{"empty username", "", "correctpw"},
		{"empty password", "alice", ""},
		{"whitespace username", "   ", "correctpw"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Login(context.Background(), tc.username, tc.password); !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("Login(%q, %q) = %v, want ErrInvalidCredentials", tc.username, tc.password, err)
			}
		})
	}
}

func TestLogin_RepoErrorPropagates(t *testing.T) {
	// The dispatcher fails closed on upstream errors; the service itself must
	// surface them so they can be logged rather than masked as a bad password.
	repoErr := errors.New("store unreachable")
	repo := &memUserRepo{byUsername: map[string]*userdomain.User{}, failWith: repoErr}
	svc, _ := newTestService(t, repo)

	_, err := svc.Login(context.Background(), "alice", "correctpw")
	if !errors.Is(err, repoErr) {
		t.Errorf("Login with failing repo = %v, want wrapped repo error", err)
	}
}

func TestRefresh_Success(t *testing.T) {
	repo := &memUserRepo{byUsername: map[string]*userdomain.User{}}
	seedUser(t, repo, "alice", "correctpw")
	svc, tokens := newTestService(t, repo)

	login, err := svc.Login(context.Background(), "alice", "correctpw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	res, err := svc.Refresh(context.Background(), login.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if res.AccessToken == "" {
		t.Error("Refresh should return a fresh access token")
	}
	if res.RefreshToken != "" {
		t.Error("Refresh must not issue a new refresh token")
	}
	id, err := tokens.ValidateAccess(res.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if id.UserID != login.UserID {
		t.Errorf("refreshed access token identity = %q, want %q", id.UserID, login.UserID)
	}
}

func TestRefresh_Invalid(t *testing.T) {
	repo := &memUserRepo{byUsername: map[string]*userdomain.User{}}
	svc, _ := newTestService(t, repo)

	expiredProvider := security.NewTokenProvider([]byte("access-secret"), []byte("refresh-secret"), -time.Minute, -time.Minute)
	expired, _, err := expiredProvider.IssueRefresh("user-alice", "alice")
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}

	foreignProvider := security.NewTokenProvider([]byte("x"), []byte("wrong-refresh-secret"), time.Minute, time.Minute)
	foreign, _, err := foreignProvider.IssueRefresh("user-alice", "alice")
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}

	for _, tc := range []struct{ name, token string }{
		{"empty", ""},
		{"garbage", "not-a-token"},
		{"expired", expired},
		{"wrong key", foreign},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Refresh(context.Background(), tc.token); !errors.Is(err, ErrInvalidRefreshToken) {
				t.Errorf("Refresh(%s) = %v, want ErrInvalidRefreshToken", tc.name, err)
			}
		})
	}
}

func TestRefresh_SurvivesStoredHashOverwrite(t *testing.T) {
	// Observed behavior of the protocol: refresh checks signature and expiry
	// only, so a second login overwriting the stored hash does not invalidate
	// the first, still-unexpired refresh token.
	repo := &memUserRepo{byUsername: map[string]*userdomain.User{}}
	seedUser(t, repo, "alice", "correctpw")
	svc, _ := newTestService(t, repo)

	first, err := svc.Login(context.Background(), "alice", "correctpw")
	if err != nil {
		t.Fatalf("first Login: %v", err)
	}
	if _, err := svc.Login(context.Background(), "alice", "correctpw"); err != nil {
		t.Fatalf("second Login: %v", err)
	}

	if _, err := svc.Refresh(context.Background(), first.RefreshToken); err != nil {
		t.Errorf("Refresh with superseded-but-unexpired token = %v, want success", err)
	}
}
