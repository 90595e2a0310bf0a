package auth

import (
	"context"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"

	"github.com/imrishuroy/go-storefront/internal/apperr"
)

// OIDCProvider verifies ID tokens issued by an OpenID Connect provider.
type OIDCProvider struct {
	verifier *oidc.IDTokenVerifier
	admins   map[string]bool
}

// NewOIDCProvider discovers issuer and returns a provider accepting tokens
// for clientID. Callers whose e-mail is in adminEmails get the admin role.
func NewOIDCProvider(ctx context.Context, issuer, clientID string, adminEmails []string) (*OIDCProvider, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, errors.Wrapf(err, "discover oidc issuer %s", issuer)
	}
	return newOIDCProvider(provider.Verifier(&oidc.Config{ClientID: clientID}), adminEmails), nil
}

func newOIDCProvider(verifier *oidc.IDTokenVerifier, adminEmails []string) *OIDCProvider {
	admins := make(map[string]bool, len(adminEmails))
	for _, e := range adminEmails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			admins[e] = true
		}
	}
	return &OIDCProvider{verifier: verifier, admins: admins}
}

type claims struct {
	Sub   string `json:"sub"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone_number"`
	Role  string `json:"role"`
}

// Verify implements Provider.
func (p *OIDCProvider) Verify(ctx context.Context, token string) (Identity, error) {
	idToken, err := p.verifier.Verify(ctx, token)
	if err != nil {
		return Identity{}, errors.Wrap(apperr.ErrUnauthorized, err.Error())
	}
	var c claims
	if err := idToken.Claims(&c); err != nil {
		return Identity{}, errors.Wrap(apperr.ErrUnauthorized, "claims parse error")
	}
	return p.identity(c), nil
}

func (p *OIDCProvider) identity(c claims) Identity {
	id := Identity{UserID: c.Sub, Role: RoleCustomer, Name: c.Name, Email: c.Email, Phone: c.Phone}
	if c.Role == RoleAdmin || p.admins[strings.ToLower(c.Email)] {
		id.Role = RoleAdmin
	}
	return id
}
