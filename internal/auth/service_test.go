package auth

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kittykibble/kibble-backend/internal/users"
	pkgAuth "github.com/kittykibble/kibble-backend/pkg/auth"
	"github.com/kittykibble/kibble-backend/pkg/auth/session"
	"github.com/kittykibble/kibble-backend/pkg/config"
	"github.com/kittykibble/kibble-backend/pkg/db/models"
	"github.com/kittykibble/kibble-backend/pkg/enums"
	pkgerrors "github.com/kittykibble/kibble-backend/pkg/errors"
	"github.com/kittykibble/kibble-backend/pkg/security"
)

var (
	testJWT      = config.JWTConfig{Secret: "secret", Issuer: "kibble-test", ExpirationMinutes: 15, RefreshTokenTTLMinutes: 60}
	testPassword = config.PasswordConfig{ArgonMemoryKB: 1024, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32}
)

type stubUserRepo struct {
	byID        map[uuid.UUID]*models.User
	lastLoginID uuid.UUID
	roleUpdates map[uuid.UUID]enums.Role
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{byID: map[uuid.UUID]*models.User{}, roleUpdates: map[uuid.UUID]enums.Role{}}
}

func (s *stubUserRepo) Create(_ context.Context, dto users.CreateUserDTO) (*models.User, error) {
	if dto.Email != nil {
		for _, u := range s.byID {
			if u.Email != nil && *u.Email == *dto.Email {
				return nil, fmt.Errorf("UNIQUE constraint failed: users.email")
			}
		}
	}
	user := dto.ToModel()
	user.ID = uuid.New()
	s.byID[user.ID] = user
	return user, nil
}

func (s *stubUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range s.byID {
		if u.Email != nil && *u.Email == email {
			copy := *u
			return &copy, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUserRepo) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := s.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copy := *u
	return &copy, nil
}

func (s *stubUserRepo) UpdateLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	s.lastLoginID = id
	if u, ok := s.byID[id]; ok {
		u.LastLoginAt = &at
	}
	return nil
}

func (s *stubUserRepo) UpdateRole(_ context.Context, id uuid.UUID, role enums.Role) error {
	s.roleUpdates[id] = role
	if u, ok := s.byID[id]; ok {
		u.Role = role
	}
	return nil
}

type stubSessions struct {
	tokens  map[string]string
	revoked []string
}

func newStubSessions() *stubSessions {
	return &stubSessions{tokens: map[string]string{}}
}

func (s *stubSessions) Generate(_ context.Context, _ uuid.UUID, accessID string) (string, error) {
	token := "refresh-" + accessID
	s.tokens[accessID] = token
	return token, nil
}

func (s *stubSessions) Rotate(_ context.Context, _ uuid.UUID, oldAccessID, provided string) (string, string, error) {
	if s.tokens[oldAccessID] != provided {
		return "", "", session.ErrInvalidRefreshToken
	}
	delete(s.tokens, oldAccessID)
	next := session.NewAccessID()
	token := "refresh-" + next
	s.tokens[next] = token
	return next, token, nil
}

func (s *stubSessions) Revoke(_ context.Context, accessID string) error {
	delete(s.tokens, accessID)
	s.revoked = append(s.revoked, accessID)
	return nil
}

func newTestService(t *testing.T, repo *stubUserRepo, sessions *stubSessions, admins ...string) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		UserRepo:       repo,
		SessionManager: sessions,
		JWTConfig:      testJWT,
		PasswordConfig: testPassword,
		AdminConfig:    config.AdminConfig{Emails: admins},
	})
	require.NoError(t, err)
	return svc
}

func seedUser(t *testing.T, repo *stubUserRepo, email, password string, role enums.Role) *models.User {
	t.Helper()
	hash, err := security.HashPassword(password, testPassword)
	require.NoError(t, err)
	user := &models.User{ID: uuid.New(), Email: &email, PasswordHash: hash, Role: role}
	repo.byID[user.ID] = user
	return user
}

func TestRegisterIssuesTokens(t *testing.T) {
	repo := newStubUserRepo()
	sessions := newStubSessions()
	svc := newTestService(t, repo, sessions)

	resp, err := svc.Register(context.Background(), RegisterRequest{Email: " Cat@Example.com ", Password: "whiskers123"})
	require.NoError(t, err)
	require.NotNil(t, resp.User)
	require.NotNil(t, resp.User.Email)
	assert.Equal(t, "cat@example.com", *resp.User.Email)
	assert.Equal(t, enums.RoleCustomer, resp.User.Role)
	assert.NotEmpty(t, resp.RefreshToken)

	claims, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
	assert.Equal(t, "refresh-"+claims.ID, resp.RefreshToken)
}

func TestRegisterAdminEmailAndDuplicate(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestService(t, repo, newStubSessions(), "boss@example.com")

	resp, err := svc.Register(context.Background(), RegisterRequest{Email: "boss@example.com", Password: "whiskers123"})
	require.NoError(t, err)
	assert.Equal(t, enums.RoleAdmin, resp.User.Role)

	_, err = svc.Register(context.Background(), RegisterRequest{Email: "BOSS@example.com", Password: "whiskers123"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestLoginSuccessPromotesAdmin(t *testing.T) {
	repo := newStubUserRepo()
	user := seedUser(t, repo, "boss@example.com", "whiskers123", enums.RoleCustomer)
	svc := newTestService(t, repo, newStubSessions(), "boss@example.com")

	resp, err := svc.Login(context.Background(), LoginRequest{Email: "Boss@Example.com", Password: "whiskers123"})
	require.NoError(t, err)
	assert.Equal(t, enums.RoleAdmin, resp.User.Role)
	assert.Equal(t, enums.RoleAdmin, repo.roleUpdates[user.ID])
	assert.Equal(t, user.ID, repo.lastLoginID)

	claims, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, enums.RoleAdmin, claims.Role)
}

func TestLoginInvalidCredentials(t *testing.T) {
	repo := newStubUserRepo()
	seedUser(t, repo, "cat@example.com", "whiskers123", enums.RoleCustomer)
	svc := newTestService(t, repo, newStubSessions())

	cases := []LoginRequest{
		{Email: "cat@example.com", Password: "wrong"},
		{Email: "dog@example.com", Password: "whiskers123"},
		{Email: "   ", Password: "whiskers123"},
	}
	for _, req := range cases {
		_, err := svc.Login(context.Background(), req)
		require.Error(t, err)
		var typed *pkgerrors.Error
		require.True(t, errors.As(err, &typed))
		assert.Equal(t, pkgerrors.CodeUnauthorized, typed.Code())
		assert.Equal(t, invalidCredentialsMessage, typed.Message())
	}
}

func TestGuestSession(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestService(t, repo, newStubSessions())

	resp, err := svc.Guest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, enums.RoleGuest, resp.User.Role)
	assert.Nil(t, resp.User.Email)

	claims, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, enums.RoleGuest, claims.Role)
}

func TestRefreshRotatesAndRereadsRole(t *testing.T) {
	repo := newStubUserRepo()
	sessions := newStubSessions()
	seedUser(t, repo, "cat@example.com", "whiskers123", enums.RoleCustomer)
	svc := newTestService(t, repo, sessions)

	resp, err := svc.Login(context.Background(), LoginRequest{Email: "cat@example.com", Password: "whiskers123"})
	require.NoError(t, err)
	require.NoError(t, repo.UpdateRole(context.Background(), resp.User.ID, enums.RoleAdmin))

	pair, err := svc.Refresh(context.Background(), resp.AccessToken, resp.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, resp.RefreshToken, pair.RefreshToken)

	claims, err := pkgAuth.ParseAccessToken(testJWT, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, enums.RoleAdmin, claims.Role)
	assert.Equal(t, "refresh-"+claims.ID, pair.RefreshToken)

	_, err = svc.Refresh(context.Background(), resp.AccessToken, resp.RefreshToken)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestRefreshAcceptsExpiredAccessToken(t *testing.T) {
	repo := newStubUserRepo()
	sessions := newStubSessions()
	user := seedUser(t, repo, "cat@example.com", "whiskers123", enums.RoleCustomer)
	svc := newTestService(t, repo, sessions)

	accessID := session.NewAccessID()
	expired, err := pkgAuth.MintAccessToken(testJWT, time.Now().Add(-2*time.Hour), pkgAuth.AccessTokenPayload{
		UserID: user.ID, Role: user.Role, JTI: accessID,
	})
	require.NoError(t, err)
	refresh, err := sessions.Generate(context.Background(), user.ID, accessID)
	require.NoError(t, err)

	pair, err := svc.Refresh(context.Background(), expired, refresh)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
}

func TestLogoutRevokesSession(t *testing.T) {
	repo := newStubUserRepo()
	sessions := newStubSessions()
	seedUser(t, repo, "cat@example.com", "whiskers123", enums.RoleCustomer)
	svc := newTestService(t, repo, sessions)

	resp, err := svc.Login(context.Background(), LoginRequest{Email: "cat@example.com", Password: "whiskers123"})
	require.NoError(t, err)
	claims, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), resp.AccessToken))
	assert.Equal(t, []string{claims.ID}, sessions.revoked)

	err = svc.Logout(context.Background(), "not-a-token")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestMe(t *testing.T) {
	repo := newStubUserRepo()
	user := seedUser(t, repo, "cat@example.com", "whiskers123", enums.RoleCustomer)
	svc := newTestService(t, repo, newStubSessions())

	dto, err := svc.Me(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, dto.ID)

	_, err = svc.Me(context.Background(), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
