package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"model-trainer-service/internal/core/domain"
)

const identityKey = "identity"

// Claims are the bearer token claims: the subject is the user id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Auth verifies an HS256 bearer token and stores the caller identity in the
// gin context. An empty issuer accepts any issuer.
func Auth(secret []byte, issuer string) gin.HandlerFunc {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	parser := jwt.NewParser(opts...)

	return func(c *gin.Context) {
		identity, err := authenticate(parser, secret, c.GetHeader("Authorization"))
		if err != nil {
			log.WithError(err).WithField("path", c.Request.URL.Path).Debug("rejected credentials")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": domain.ErrUnauthorized.Error()})
			return
		}
		c.Set(identityKey, identity)
		c.Next()
	}
}

func authenticate(parser *jwt.Parser, secret []byte, header string) (domain.Identity, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return domain.Identity{}, errors.New("missing bearer token")
	}

	var claims Claims
	_, err := parser.ParseWithClaims(strings.TrimSpace(raw), &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		return domain.Identity{}, err
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return domain.Identity{}, errors.New("subject is not a user id")
	}
	role := domain.Role(claims.Role)
	if role == "" {
		role = domain.RoleUser
	}
	if !role.IsValid() {
		return domain.Identity{}, errors.New("unknown role")
	}
	return domain.Identity{ID: id, Role: role}, nil
}

// IdentityFrom returns the identity set by Auth.
func IdentityFrom(c *gin.Context) (domain.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return domain.Identity{}, false
	}
	id, ok := v.(domain.Identity)
	return id, ok
}

// IssueToken signs a token for identity, valid for ttl.
func IssueToken(secret []byte, issuer string, identity domain.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: string(identity.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID.String(),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
