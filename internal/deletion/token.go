package deletion

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken covers tampered, malformed, and expired tokens.
	ErrInvalidToken = errors.New("invalid or expired confirmation token")
)

// DefaultTokenTTL bounds how long a proposed deletion stays confirmable.
// The underlying data can drift arbitrarily far while a confirmation sits
// unanswered, so proposals expire instead of living forever.
const DefaultTokenTTL = 10 * time.Minute

// TokenCodec round-trips a Proposal through the chat transport's opaque
// callback string. Claims are structured fields, so category names that
// contain delimiter characters cannot corrupt the encoding, and the HMAC
// signature keeps users from confirming a deletion they never proposed.
type TokenCodec struct {
	secretKey []byte
	ttl       time.Duration
}

// Claims carries a Proposal inside a signed token.
type Claims struct {
	UserID   string   `json:"user_id"`
	Proposal Proposal `json:"proposal"`
	jwt.RegisteredClaims
}

// NewTokenCodec creates a codec with the given signing secret and TTL.
// secretKey should be a strong random string (e.g. 32 bytes). A zero ttl
// uses DefaultTokenTTL.
func NewTokenCodec(secretKey string, ttl time.Duration) *TokenCodec {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenCodec{
		secretKey: []byte(secretKey),
		ttl:       ttl,
	}
}

// Encode signs a proposal for the given user into an opaque string.
func (c *TokenCodec) Encode(userID string, p *Proposal) (string, error) {
	claims := &Claims{
		UserID:   userID,
		Proposal: *p,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(c.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(c.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// Decode validates a token and returns the embedded proposal. It checks
// that the token belongs to the given user, so a forwarded confirmation
// cannot mutate someone else's data.
func (c *TokenCodec) Decode(userID, tokenString string) (*Proposal, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return c.secretKey, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID != userID {
		return nil, ErrInvalidToken
	}
	return &claims.Proposal, nil
}
