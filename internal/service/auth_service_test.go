package service

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-attendance-api/internal/models"
	appErrors "github.com/noah-isme/campus-attendance-api/pkg/errors"
)

func TestTokenVerifierRoundTrip(t *testing.T) {
	verifier := NewTokenVerifier(AuthConfig{Secret: "s3cret", Issuer: "campus-idp", Audience: "attendance"}, nil)

	token, err := verifier.IssueToken("user-1", "u1@campus.test", models.RoleInstructor, time.Minute)
	require.NoError(t, err)

	claims, err := verifier.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID())
	assert.Equal(t, models.RoleInstructor, claims.Role)
}

func TestTokenVerifierRejectsForeignTokens(t *testing.T) {
	issuer := NewTokenVerifier(AuthConfig{Secret: "other", Issuer: "campus-idp"}, nil)
	verifier := NewTokenVerifier(AuthConfig{Secret: "s3cret", Issuer: "campus-idp"}, nil)

	token, err := issuer.IssueToken("user-1", "", models.RoleStudent, time.Minute)
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, appErrors.FromError(err).Status)
}

func TestTokenVerifierChecksIssuerAndExpiry(t *testing.T) {
	wrongIssuer := NewTokenVerifier(AuthConfig{Secret: "s3cret", Issuer: "elsewhere"}, nil)
	verifier := NewTokenVerifier(AuthConfig{Secret: "s3cret", Issuer: "campus-idp"}, nil)

	token, err := wrongIssuer.IssueToken("user-1", "", models.RoleStudent, time.Minute)
	require.NoError(t, err)
	_, err = verifier.ValidateToken(token)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthenticated))

	expired, err := verifier.IssueToken("user-1", "", models.RoleStudent, -time.Minute)
	require.NoError(t, err)
	_, err = verifier.ValidateToken(expired)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthenticated))
}
