package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"model-trainer-service/internal/core/domain"
)

var testSecret = []byte("test-secret")

func newAuthRouter(issuer string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Auth(testSecret, issuer))
	r.GET("/me", func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id.ID, "role": id.Role})
	})
	return r
}

func get(r *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth_ValidToken(t *testing.T) {
	r := newAuthRouter("trainer")
	identity := domain.Identity{ID: uuid.New(), Role: domain.RoleAdmin}
	token, err := IssueToken(testSecret, "trainer", identity, time.Hour)
	require.NoError(t, err)

	w := get(r, token)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), identity.ID.String())
	assert.Contains(t, w.Body.String(), `"role":"admin"`)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestAuth_DefaultsToUserRole(t *testing.T) {
	r := newAuthRouter("")
	token, err := IssueToken(testSecret, "", domain.Identity{ID: uuid.New()}, time.Hour)
	require.NoError(t, err)

	w := get(r, token)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"role":"user"`)
}

func TestAuth_Rejects(t *testing.T) {
	id := domain.Identity{ID: uuid.New(), Role: domain.RoleUser}
	expired, err := IssueToken(testSecret, "trainer", id, -time.Minute)
	require.NoError(t, err)
	wrongKey, err := IssueToken([]byte("other"), "trainer", id, time.Hour)
	require.NoError(t, err)
	wrongIssuer, err := IssueToken(testSecret, "someone-else", id, time.Hour)
	require.NoError(t, err)
	badRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:             "root",
		RegisteredClaims: jwt.RegisteredClaims{Subject: id.ID.String(), Issuer: "trainer"},
	}).SignedString(testSecret)
	require.NoError(t, err)
	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "alice", Issuer: "trainer"},
	}).SignedString(testSecret)
	require.NoError(t, err)

	tests := map[string]string{
		"missing":      "",
		"garbage":      "not-a-token",
		"expired":      expired,
		"wrong key":    wrongKey,
		"wrong issuer": wrongIssuer,
		"bad role":     badRole,
		"bad subject":  badSubject,
	}
	r := newAuthRouter("trainer")
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			w := get(r, token)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), domain.ErrUnauthorized.Error())
		})
	}
}
