package handler

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-attendance-api/internal/models"
	"github.com/noah-isme/campus-attendance-api/internal/session"
	appErrors "github.com/noah-isme/campus-attendance-api/pkg/errors"
)

// newTestContext builds a gin context. claims travel on the request context the
// way the JWT middleware leaves them.
func newTestContext(method, target string, body string, claims *models.JWTClaims, params gin.Params) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(method, target, nil)
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if claims != nil {
		req = req.WithContext(session.WithClaims(req.Context(), claims))
	}
	c.Request = req
	c.Params = params
	return c, w
}

func studentClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{Role: models.RoleStudent, Email: id + "@campus.test", RegisteredClaims: jwt.RegisteredClaims{Subject: id}}
}

type envelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}
