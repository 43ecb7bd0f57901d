package auth

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"atlas-backend/internal/model"
)

// DefaultTokenTTL is the fallback token lifetime when the configured expiry
// expression does not parse.
const DefaultTokenTTL = time.Hour

// Claims represents the JWT claims carried by a session token.
type Claims struct {
	jwt.RegisteredClaims
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
}

// GenerateToken creates a signed JWT for the given person.
func GenerateToken(p *model.Person, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(p.ID, 10),
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: p.Email,
		Role:  p.Role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken validates and parses a JWT, returning the claims.
func ParseToken(tokenStr string, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// SubjectID extracts the person id from the claims subject.
func (c *Claims) SubjectID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ParseExpiry turns a duration expression ("<n>", "<n>s", "<n>m", "<n>h",
// "<n>d"; a bare number is seconds) into a time.Duration. An unparseable
// expression falls back to DefaultTokenTTL with a warning rather than
// blocking token issuance.
func ParseExpiry(expr string) time.Duration {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return DefaultTokenTTL
	}

	unit := time.Second
	digits := expr
	switch expr[len(expr)-1] {
	case 's':
		digits = expr[:len(expr)-1]
	case 'm':
		unit = time.Minute
		digits = expr[:len(expr)-1]
	case 'h':
		unit = time.Hour
		digits = expr[:len(expr)-1]
	case 'd':
		unit = 24 * time.Hour
		digits = expr[:len(expr)-1]
	}

	n, err := strconv.Atoi(digits)
	if err != nil || n <= 0 {
		log.Printf("WARN: invalid token expiry %q, falling back to %s", expr, DefaultTokenTTL)
		return DefaultTokenTTL
	}
	return time.Duration(n) * unit
}
