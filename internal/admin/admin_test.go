package admin

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/lib/pq"
	"github.com/playshuffle/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestVerifyAdminToken(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	assert.True(t, VerifyAdminToken(string(hash), "s3cret"))
	assert.False(t, VerifyAdminToken(string(hash), "wrong"))
	assert.False(t, VerifyAdminToken("not-a-hash", "s3cret"))
}

func TestSessionRoundTrip(t *testing.T) {
	acc := &models.AdminAccount{Username: "ops", Roles: pq.StringArray{RoleViewer, RoleOperator}}
	token, exp, err := IssueSession("k", acc, time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)

	claims, err := ParseSession("k", token)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Username)
	assert.True(t, claims.HasRole(RoleOperator))
	assert.False(t, claims.HasRole("root"))
}

func TestParseSessionRejects(t *testing.T) {
	acc := &models.AdminAccount{Username: "ops"}

	good, _, err := IssueSession("k", acc, time.Hour)
	require.NoError(t, err)
	expired, _, err := IssueSession("k", acc, -time.Minute)
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, SessionClaims{Username: "ops"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name   string
		secret string
		token  string
	}{
		{"wrong secret", "other", good},
		{"expired", "k", expired},
		{"unsigned", "k", none},
		{"garbage", "k", "abc.def.ghi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSession(tt.secret, tt.token)
			assert.ErrorIs(t, err, ErrInvalidSession)
		})
	}
}

func TestLogAdminActionWithoutDB(t *testing.T) {
	assert.NoError(t, LogAdminAction(nil, "ops", "127.0.0.1", "/x", "noop", nil, true))
}
