package utils // package utils provides helper functions for token creation and hashing

import (
    "crypto/rand"   // secure random number generation
    "crypto/sha256" // SHA‑256 hashing for refresh tokens
    "encoding/hex"  // hex encoding and decoding functions
    "errors"
    "strconv"
    "time" // time utilities for generating expirations

    "github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens

    "github.com/iliyamo/finiti-glossary/internal/model"
)

// AccessToken represents a signed JWT access token along with its expiry.
// Access tokens are short‑lived and sent in the Authorization header when
// calling /admin endpoints.
type AccessToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// RefreshToken represents a long‑lived token used to obtain new access
// tokens.  Only a SHA‑256 hash of Raw is stored in the database.
type RefreshToken struct {
    Raw string    // raw token string returned to the client
    Exp time.Time // UTC expiration time
}

// Claims is the payload of an access token.  The subject is the user's
// email; "id" carries the numeric id as a string so it can be compared
// with created_by_id columns directly.
type Claims struct {
    ID       string `json:"id"`
    Username string `json:"username"`
    Role     string `json:"role"`
    IsAdmin  bool   `json:"isAdmin"`
    jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 access tokens.
type TokenIssuer struct {
    Secret   []byte
    Issuer   string
    Audience string
    TTL      time.Duration
    Now      func() time.Time // defaults to time.Now
}

// NewTokenIssuer returns an issuer for the given secret and claims.
func NewTokenIssuer(secret, issuer, audience string, ttlMin int) *TokenIssuer {
    return &TokenIssuer{
        Secret:   []byte(secret),
        Issuer:   issuer,
        Audience: audience,
        TTL:      time.Duration(ttlMin) * time.Minute,
    }
}

func (i *TokenIssuer) now() time.Time {
    if i.Now != nil {
        return i.Now().UTC()
    }
    return time.Now().UTC()
}

// Create builds and signs an access token for u.
func (i *TokenIssuer) Create(u *model.User) (AccessToken, error) {
    now := i.now()
    exp := now.Add(i.TTL)
    claims := Claims{
        ID:       strconv.FormatUint(u.ID, 10),
        Username: u.Username,
        Role:     u.Role,
        IsAdmin:  u.IsAdmin,
        RegisteredClaims: jwt.RegisteredClaims{
            Subject:   u.Email,
            Issuer:    i.Issuer,
            ExpiresAt: jwt.NewNumericDate(exp),
            IssuedAt:  jwt.NewNumericDate(now),
        },
    }
    if i.Audience != "" {
        claims.Audience = jwt.ClaimStrings{i.Audience}
    }
    t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
    signed, err := t.SignedString(i.Secret)
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}

// ErrInvalidToken is returned by Parse for any token that must be rejected.
var ErrInvalidToken = errors.New("invalid token")

// Parse verifies the signature, expiry, issuer and audience of raw and
// returns its claims.
func (i *TokenIssuer) Parse(raw string) (*Claims, error) {
    opts := []jwt.ParserOption{
        jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
        jwt.WithTimeFunc(i.now),
    }
    if i.Issuer != "" {
        opts = append(opts, jwt.WithIssuer(i.Issuer))
    }
    if i.Audience != "" {
        opts = append(opts, jwt.WithAudience(i.Audience))
    }
    var claims Claims
    tok, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
        return i.Secret, nil
    }, opts...)
    if err != nil || !tok.Valid {
        return nil, ErrInvalidToken
    }
    return &claims, nil
}

// NewRefreshToken returns a cryptographically secure random token (raw)
// expiring ttlDays from now.
func NewRefreshToken(ttlDays int) (RefreshToken, error) {
    raw, err := randomHex(48) // 48 bytes -> 96 hex chars
    if err != nil {
        return RefreshToken{}, err
    }
    return RefreshToken{
        Raw: raw,
        Exp: time.Now().UTC().Add(time.Duration(ttlDays) * 24 * time.Hour),
    }, nil
}

// HashRefreshRaw returns the SHA‑256 hash of the raw refresh token as a hex
// string.  Storing only the hash in the database prevents stolen rows from
// being replayed.
func HashRefreshRaw(raw string) string {
    sum := sha256.Sum256([]byte(raw))
    return hex.EncodeToString(sum[:])
}

// randomHex returns a hex‑encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
    buf := make([]byte, n)
    if _, err := rand.Read(buf); err != nil {
        return "", err
    }
    return hex.EncodeToString(buf), nil
}
