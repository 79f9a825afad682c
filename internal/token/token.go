// Package token encodes and verifies the signed bearer credential used by
// the authentication service. A token is a self-contained HS256 JWT carrying
// the user id, username and the role-name snapshot taken at issuance.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalid indicates the token failed verification: malformed
	// structure, bad signature, wrong issuer/audience or missing claims.
	ErrInvalid = errors.New("token: invalid")
	// ErrExpired indicates a structurally sound, correctly signed token
	// whose expiry has passed. It matches ErrInvalid under errors.Is.
	ErrExpired = fmt.Errorf("%w: expired", ErrInvalid)
)

// Claims is the signed payload of an issued token. Roles are a snapshot of
// the user's role names at issuance time; they are not refreshed until the
// token is reissued.
type Claims struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

// UserID parses the numeric user id carried in the subject claim.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad subject %q", ErrInvalid, c.Subject)
	}
	return id, nil
}

// Codec issues and verifies tokens with a server-held symmetric secret.
// It is a pure function of its configuration; it has no side effects and is
// safe for concurrent use.
type Codec struct {
	secret   []byte
	issuer   string
	audience string
	now      func() time.Time
}

// Option configures a Codec.
type Option func(*Codec)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(c *Codec) {
		if fn != nil {
			c.now = fn
		}
	}
}

// NewCodec constructs a Codec. The secret must be non-empty; issuer and
// audience are stamped into every issued token and checked on verification.
func NewCodec(secret, issuer, audience string, opts ...Option) (*Codec, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("token: signing secret is required")
	}
	c := &Codec{
		secret:   []byte(secret),
		issuer:   strings.TrimSpace(issuer),
		audience: strings.TrimSpace(audience),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Issue signs a token for the given user with the provided role snapshot.
// Timestamps are whole seconds; expiry is issued-at plus ttl.
func (c *Codec) Issue(userID int64, username string, roles []string, ttl time.Duration) (string, *Claims, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", nil, errors.New("token: username is required")
	}
	if ttl <= 0 {
		return "", nil, errors.New("token: ttl must be greater than zero")
	}

	now := c.now().UTC().Truncate(time.Second)
	claims := &Claims{
		Username: username,
		Roles:    NormalizeRoles(roles),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.audience},
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", nil, fmt.Errorf("token: sign: %w", err)
	}
	return signed, claims, nil
}

// Verify checks signature, structure and the registered claims. On an
// expired but otherwise sound token it returns the decoded claims together
// with ErrExpired, so callers that only need the token identity (logout)
// can still read it.
func (c *Codec) Verify(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalid
	}

	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalid
		}
		return c.secret, nil
	},
		jwt.WithTimeFunc(c.now),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			if claims, ok := expiredClaims(parsed); ok {
				return claims, ErrExpired
			}
			return nil, ErrExpired
		}
		return nil, ErrInvalid
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalid
	}
	if err := c.validate(claims); err != nil {
		return nil, ErrInvalid
	}
	claims.Roles = NormalizeRoles(claims.Roles)
	return claims, nil
}

// validate enforces the required-claim rules the jwt library treats as
// optional.
func (c *Codec) validate(claims *Claims) error {
	if strings.TrimSpace(claims.Subject) == "" {
		return errors.New("subject missing")
	}
	if _, err := claims.UserID(); err != nil {
		return err
	}
	if strings.TrimSpace(claims.Username) == "" {
		return errors.New("username missing")
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return errors.New("timestamps missing")
	}
	if claims.ExpiresAt.Time.Before(claims.IssuedAt.Time) {
		return errors.New("expiry precedes issued-at")
	}
	if strings.TrimSpace(claims.ID) == "" {
		return errors.New("token id missing")
	}
	return nil
}

// expiredClaims recovers the decoded claims from a parse that failed only
// on expiry. The signature has already been verified at that point.
func expiredClaims(parsed *jwt.Token) (*Claims, bool) {
	if parsed == nil {
		return nil, false
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || claims == nil {
		return nil, false
	}
	if strings.TrimSpace(claims.ID) == "" || claims.ExpiresAt == nil {
		return nil, false
	}
	return claims, true
}

// NormalizeRoles lower-cases, trims and deduplicates a role-name set while
// preserving first-seen order.
func NormalizeRoles(roles []string) []string {
	if len(roles) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(roles))
	var out []string
	for _, role := range roles {
		role = strings.TrimSpace(strings.ToLower(role))
		if role == "" {
			continue
		}
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		out = append(out, role)
	}
	return out
}
