package users

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/imrishuroy/go-storefront/internal/apperr"
	"github.com/imrishuroy/go-storefront/internal/auth"
)

// TokenIssuer signs bearer tokens for an identity.
type TokenIssuer interface {
	Issue(id auth.Identity) (string, error)
}

// Service handles signup and login.
type Service struct {
	store   *Store
	tokens  TokenIssuer
	admins  map[string]bool
	cost    int
	nowFunc func() time.Time
}

// NewService returns a users Service. Accounts whose e-mail is listed in
// adminEmails are created with the admin role.
func NewService(store *Store, tokens TokenIssuer, adminEmails []string) *Service {
	admins := make(map[string]bool, len(adminEmails))
	for _, e := range adminEmails {
		if e = NormalizeEmail(e); e != "" {
			admins[e] = true
		}
	}
	return &Service{
		store:   store,
		tokens:  tokens,
		admins:  admins,
		cost:    bcrypt.DefaultCost,
		nowFunc: time.Now,
	}
}

// Signup creates an account and returns a session for it.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*Session, error) {
	email := NormalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)
	if email == "" || name == "" || in.Password == "" {
		return nil, apperr.Validation("Missing fields")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, apperr.Validation("unusable password: %v", err)
	}

	now := s.nowFunc().UTC()
	u := &User{
		Email:        email,
		UserID:       uuid.NewString(),
		Name:         name,
		Phone:        strings.TrimSpace(in.Phone),
		Role:         auth.RoleCustomer,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if s.admins[email] {
		u.Role = auth.RoleAdmin
	}
	if err := s.store.Create(ctx, u); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"userId": u.UserID, "role": u.Role}).Info("account created")
	return s.session(u)
}

// Login checks the password and returns a new session. Unknown e-mails and
// wrong passwords fail alike with apperr.ErrBadCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.store.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, apperr.ErrBadCredentials
	}
	return s.session(u)
}

func (s *Service) session(u *User) (*Session, error) {
	id := u.Identity()
	token, err := s.tokens.Issue(id)
	if err != nil {
		return nil, errors.Wrap(err, "issue token")
	}
	return &Session{Token: token, User: id}, nil
}
