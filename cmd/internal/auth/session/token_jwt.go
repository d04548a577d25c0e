package session

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTTL is the session lifetime when none is configured (24 hours,
// matching the historical 1440-minute default).
const DefaultTTL = 24 * time.Hour

// TokenIssuer mints and parses signed bearer tokens. It never consults
// storage; session-row checks belong to the Service.
type TokenIssuer interface {
	// Issue returns a signed token embedding subjectID and an absolute
	// expiry of now + TTL. Every call returns a distinct token.
	Issue(subjectID string, now time.Time) (token string, expiresAt time.Time, err error)

	// Subject verifies signature and expiry and returns the embedded
	// subject id. Signature mismatch, malformed input, and clock expiry all
	// return ErrInvalidToken.
	Subject(token string, now time.Time) (string, error)
}

// JWTManager is an HS256 TokenIssuer. The signing secret is process-wide and
// loaded once at startup.
type JWTManager struct {
	secret []byte
	ttl    time.Duration
}

// NewJWTManager validates the secret and TTL. Secrets shorter than 32 bytes
// are rejected; HMAC-SHA256 gives no safety margin below that.
func NewJWTManager(secret []byte, ttl time.Duration) (*JWTManager, error) {
	if len(secret) < 32 {
		return nil, errors.New("session: signing secret must be at least 32 bytes")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &JWTManager{secret: secret, ttl: ttl}, nil
}

// TTL returns the configured session lifetime.
func (m *JWTManager) TTL() time.Duration { return m.ttl }

// Issue mints a signed token for subjectID.
// A random jti makes tokens unique even for same-subject same-second logins.
func (m *JWTManager) Issue(subjectID string, now time.Time) (string, time.Time, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	expiresAt := now.Add(m.ttl)

	claims := jwt.RegisteredClaims{
		Subject:   subjectID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		ID:        uuid.NewString(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Subject verifies signature and expiry and returns the subject claim.
func (m *JWTManager) Subject(token string, now time.Time) (string, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, ErrInvalidToken
			}
			return m.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// HashTokenHex returns the SHA-256 hex digest under which a bearer token is
// stored. Plain token values never touch the database.
func HashTokenHex(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
