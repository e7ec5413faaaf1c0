package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/societygate/gate-backend/internal/models"
	"github.com/societygate/gate-backend/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testClient = utils.ClientInfo{IP: "203.0.113.7", UserAgent: "Mozilla/5.0 (X11; Linux x86_64) Firefox/120.0"}

func TestLogin_Admin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.createAdmin(t, "admin@example.com", true)

	session, err := env.auth.Login(ctx, " Admin@Example.com", testPassword, testClient)
	require.NoError(t, err)

	assert.Equal(t, models.PrincipalAdmin, session.Role)
	assert.Equal(t, AdminRedirect, session.Redirect)
	assert.NotEmpty(t, session.RefreshToken)
	assert.Equal(t, int64(900), session.ExpiresIn)

	claims, err := env.jwt.ValidateAccessToken(session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, claims.UserID)
	assert.Equal(t, []string{models.PrincipalAdmin}, claims.Roles)

	stored, err := env.admins.GetByID(ctx, admin.ID)
	require.NoError(t, err)
	assert.True(t, stored.LastLoginAt.Valid)

	assert.Equal(t, float64(1), counterValue(t, env.metrics, "society_logins_total", "success"))
}

func TestLogin_ApprovedResident(t *testing.T) {
	env := newTestEnv(t)
	user := env.createResident(t, "john@example.com", "A-101", models.RoleOwner, models.UserStatusApproved)

	session, err := env.auth.Login(context.Background(), "john@example.com", testPassword, testClient)
	require.NoError(t, err)

	assert.Equal(t, models.PrincipalResident, session.Role)
	assert.Equal(t, ResidentRedirect, session.Redirect)

	principal, ok := session.Principal.(*models.User)
	require.True(t, ok)
	assert.Equal(t, user.ID, principal.ID)

	claims, err := env.jwt.ValidateAccessToken(session.AccessToken)
	require.NoError(t, err)
	assert.True(t, claims.HasRole(models.PrincipalResident))
	assert.True(t, claims.HasRole("owner"))
	assert.Equal(t, "A-101", claims.FlatNumber)
}

func TestLogin_Rejections(t *testing.T) {
	env := newTestEnv(t)
	env.createResident(t, "pending@example.com", "A-101", models.RoleOwner, models.UserStatusPending)
	env.createResident(t, "rejected@example.com", "B-202", models.RoleOwner, models.UserStatusRejected)
	env.createResident(t, "john@example.com", "C-303", models.RoleOwner, models.UserStatusApproved)
	env.createAdmin(t, "inactive@example.com", false)

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"pending resident", "pending@example.com", testPassword},
		{"rejected resident", "rejected@example.com", testPassword},
		{"wrong password", "john@example.com", "wrong-password"},
		{"unknown email", "nobody@example.com", testPassword},
		{"inactive admin", "inactive@example.com", testPassword},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, err := env.auth.Login(context.Background(), tt.email, tt.password, testClient)
			assert.Nil(t, session)

			var authErr *AuthError
			require.True(t, errors.As(err, &authErr))
			assert.Equal(t, "invalid email or password", authErr.Message)
		})
	}

	var count int
	require.NoError(t, env.db.Get(&count, `SELECT COUNT(*) FROM refresh_tokens`))
	assert.Zero(t, count)
}

func TestLogin_RateLimitedAfterRepeatedFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createResident(t, "john@example.com", "A-101", models.RoleOwner, models.UserStatusApproved)

	for i := 0; i < 3; i++ {
		_, err := env.auth.Login(ctx, "john@example.com", "wrong-password", testClient)
		var authErr *AuthError
		require.True(t, errors.As(err, &authErr))
	}

	// even the right password is refused while limited
	_, err := env.auth.Login(ctx, "john@example.com", testPassword, testClient)
	var rateLimitErr *RateLimitError
	require.True(t, errors.As(err, &rateLimitErr))
	assert.Equal(t, "email", rateLimitErr.Type)
}

func TestRefreshAndLogout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createResident(t, "john@example.com", "A-101", models.RoleOwner, models.UserStatusApproved)

	session, err := env.auth.Login(ctx, "john@example.com", testPassword, testClient)
	require.NoError(t, err)

	refreshed, err := env.auth.Refresh(ctx, session.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, session.RefreshToken, refreshed.RefreshToken)
	assert.Equal(t, ResidentRedirect, refreshed.Redirect)

	claims, err := env.jwt.ValidateAccessToken(refreshed.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	require.NoError(t, env.auth.Logout(ctx, residentActor(user), session.RefreshToken))
	require.NoError(t, env.auth.Logout(ctx, residentActor(user), session.RefreshToken))

	_, err = env.auth.Refresh(ctx, session.RefreshToken)
	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, "refresh token has been revoked", authErr.Message)
}

func TestRefresh_RejectsAccessTokenAndUnknownToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createResident(t, "john@example.com", "A-101", models.RoleOwner, models.UserStatusApproved)

	session, err := env.auth.Login(ctx, "john@example.com", testPassword, testClient)
	require.NoError(t, err)

	var authErr *AuthError
	_, err = env.auth.Refresh(ctx, session.AccessToken)
	assert.True(t, errors.As(err, &authErr))

	unstored, err := env.jwt.GenerateRefreshToken("someone", "someone@example.com")
	require.NoError(t, err)
	_, err = env.auth.Refresh(ctx, unstored)
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, "refresh token not found", authErr.Message)
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.createAdmin(t, "admin@example.com", true)
	user := env.createResident(t, "john@example.com", "A-101", models.RoleOwner, models.UserStatusApproved)

	got, err := env.auth.Me(ctx, adminActor(admin))
	require.NoError(t, err)
	assert.Equal(t, admin.ID, got.(*models.AdminUser).ID)

	got, err = env.auth.Me(ctx, residentActor(user))
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.(*models.User).ID)

	_, err = env.auth.Me(ctx, models.Actor{ID: "gone", Roles: []string{models.PrincipalResident}})
	var notFound *NotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestCreateAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin, err := env.auth.CreateAdmin(ctx, "Office@Example.com", "longpassword", "Gate Office", "")
	require.NoError(t, err)
	assert.Equal(t, "office@example.com", admin.Email)
	assert.True(t, admin.IsActive)

	_, err = env.auth.CreateAdmin(ctx, "office@example.com", "longpassword", "Gate Office", "")
	var conflict *ConflictError
	assert.True(t, errors.As(err, &conflict))

	_, err = env.auth.CreateAdmin(ctx, "other@example.com", "short", "Gate Office", "")
	var validationErr *ValidationError
	assert.True(t, errors.As(err, &validationErr))
}

func TestResetAdminPassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createAdmin(t, "admin@example.com", true)

	session, err := env.auth.Login(ctx, "admin@example.com", testPassword, testClient)
	require.NoError(t, err)

	_, err = env.auth.ResetAdminPassword(ctx, "Admin@Example.com", "brand-new-pass")
	require.NoError(t, err)

	// old sessions cannot be refreshed
	_, err = env.auth.Refresh(ctx, session.RefreshToken)
	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, "refresh token has been revoked", authErr.Message)

	_, err = env.auth.Login(ctx, "admin@example.com", "brand-new-pass", testClient)
	assert.NoError(t, err)

	_, err = env.auth.ResetAdminPassword(ctx, "nobody@example.com", "brand-new-pass")
	var notFound *NotFoundError
	assert.True(t, errors.As(err, &notFound))

	_, err = env.auth.ResetAdminPassword(ctx, "admin@example.com", "short")
	var validationErr *ValidationError
	assert.True(t, errors.As(err, &validationErr))

	admins, err := env.auth.ListAdmins(ctx)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, "admin@example.com", admins[0].Email)
}

func TestLogin_UnknownEmailComparesPlaceholderHash(t *testing.T) {
	env := newTestEnv(t)
	assert.Empty(t, env.auth.dummyHash)

	_, err := env.auth.Login(context.Background(), "ghost@example.com", testPassword, testClient)
	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))

	assert.NotEmpty(t, env.auth.dummyHash)
	assert.False(t, passwordMatches(env.auth.dummyHash, testPassword))
}

func TestLogout_RejectsAnotherAccountsToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	john := env.createResident(t, "john@example.com", "A-101", models.RoleOwner, models.UserStatusApproved)
	env.createResident(t, "jane@example.com", "B-202", models.RoleTenant, models.UserStatusApproved)

	janeSession, err := env.auth.Login(ctx, "jane@example.com", testPassword, testClient)
	require.NoError(t, err)

	err = env.auth.Logout(ctx, residentActor(john), janeSession.RefreshToken)
	var forbidden *ForbiddenError
	require.True(t, errors.As(err, &forbidden))

	// jane's session is untouched
	_, err = env.auth.Refresh(ctx, janeSession.RefreshToken)
	assert.NoError(t, err)

	// an unknown token is a no-op
	assert.NoError(t, env.auth.Logout(ctx, residentActor(john), "never-issued"))
}

func TestAdminPassword_ByteLimit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createAdmin(t, "admin@example.com", true)

	// 40 two-byte characters: under 72 runes, over 72 bytes
	tooLong := strings.Repeat("é", 40)

	_, err := env.auth.CreateAdmin(ctx, "office@example.com", tooLong, "Gate Office", "")
	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "must be at most 72 bytes", validationErr.Fields["password"])

	_, err = env.auth.ResetAdminPassword(ctx, "admin@example.com", strings.Repeat("a", 73))
	require.True(t, errors.As(err, &validationErr))
	assert.Contains(t, validationErr.Fields, "password")

	_, err = env.auth.ResetAdminPassword(ctx, "admin@example.com", strings.Repeat("a", 72))
	assert.NoError(t, err)
}
