package auth

import (
	"context"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/pkg/errors"

	"github.com/imrishuroy/go-storefront/internal/apperr"
)

// MinSecretLen is the shortest HS256 secret accepted.
const MinSecretLen = 32

// TokenProvider issues and verifies HS256 JWTs for password accounts.
type TokenProvider struct {
	key      []byte
	issuer   string
	lifetime time.Duration
	signer   jose.Signer
	nowFunc  func() time.Time
}

// NewTokenProvider returns a provider signing with secret. Tokens expire
// after lifetime.
func NewTokenProvider(secret, issuer string, lifetime time.Duration) (*TokenProvider, error) {
	if len(secret) < MinSecretLen {
		return nil, errors.Errorf("jwt secret must be at least %d bytes", MinSecretLen)
	}
	if lifetime <= 0 {
		return nil, errors.New("jwt lifetime must be positive")
	}
	key := []byte(secret)
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: key},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create token signer")
	}
	return &TokenProvider{
		key:      key,
		issuer:   issuer,
		lifetime: lifetime,
		signer:   signer,
		nowFunc:  time.Now,
	}, nil
}

type tokenClaims struct {
	Role  string `json:"role"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Issue signs a token for id.
func (p *TokenProvider) Issue(id Identity) (string, error) {
	now := p.nowFunc()
	std := jwt.Claims{
		Subject:   id.UserID,
		Issuer:    p.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		Expiry:    jwt.NewNumericDate(now.Add(p.lifetime)),
	}
	custom := tokenClaims{Role: id.Role, Name: id.Name, Email: id.Email, Phone: id.Phone}
	raw, err := jwt.Signed(p.signer).Claims(std).Claims(custom).Serialize()
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return raw, nil
}

// Verify implements Provider.
func (p *TokenProvider) Verify(ctx context.Context, token string) (Identity, error) {
	tok, err := jwt.ParseSigned(token, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return Identity{}, errors.Wrap(apperr.ErrUnauthorized, "malformed token")
	}
	var (
		std    jwt.Claims
		custom tokenClaims
	)
	if err := tok.Claims(p.key, &std, &custom); err != nil {
		return Identity{}, errors.Wrap(apperr.ErrUnauthorized, "invalid token signature")
	}
	if err := std.ValidateWithLeeway(jwt.Expected{Issuer: p.issuer, Time: p.nowFunc()}, jwt.DefaultLeeway); err != nil {
		return Identity{}, errors.Wrap(apperr.ErrUnauthorized, err.Error())
	}
	if std.Subject == "" {
		return Identity{}, errors.Wrap(apperr.ErrUnauthorized, "token has no subject")
	}
	role := RoleCustomer
	if custom.Role == RoleAdmin {
		role = RoleAdmin
	}
	return Identity{
		UserID: std.Subject,
		Role:   role,
		Name:   custom.Name,
		Email:  custom.Email,
		Phone:  custom.Phone,
	}, nil
}
