package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"chess-arena/internal/store"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

const DefaultGuestPrefix = "GUEST_"

var (
	ErrMissingCredential = errors.New("missing_credential")
	ErrInvalidCredential = errors.New("invalid_credential")
)

// AccountLookup resolves a display name when the token carries none.
type AccountLookup interface {
	FindByAccountID(ctx context.Context, id string) (store.Account, error)
}

type Verifier struct {
	secret      []byte
	guestPrefix string
	accounts    AccountLookup
	now         func() time.Time
}

type accountClaims struct {
	jwt.RegisteredClaims
	AccountID string `json:"_id,omitempty"`
	Username  string `json:"username,omitempty"`
	Email     string `json:"email,omitempty"`
}

func NewVerifier(secret, guestPrefix string, accounts AccountLookup) *Verifier {
	if guestPrefix == "" {
		guestPrefix = DefaultGuestPrefix
	}
	return &Verifier{
		secret:      []byte(secret),
		guestPrefix: guestPrefix,
		accounts:    accounts,
		now:         time.Now,
	}
}

// Verify resolves a credential into an Identity. Guest credentials are
// accepted on their prefix alone; everything else must be an HS256 token
// signed with the shared secret.
func (v *Verifier) Verify(ctx context.Context, credential string) (Identity, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return Identity{}, ErrMissingCredential
	}
	if strings.HasPrefix(credential, v.guestPrefix) {
		return v.guestIdentity(credential), nil
	}

	var claims accountClaims
	_, err := jwt.ParseWithClaims(credential, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return Identity{}, mapJWTError(err)
	}

	id := claims.AccountID
	if id == "" {
		id = claims.Subject
	}
	if id == "" {
		return Identity{}, ErrInvalidCredential
	}
	name := claims.Username
	if name == "" {
		name = claims.Email
	}
	if name == "" {
		name = v.lookupName(ctx, id)
	}
	return Identity{ID: id, DisplayName: name}, nil
}

func (v *Verifier) guestIdentity(credential string) Identity {
	name := strings.TrimPrefix(credential, v.guestPrefix)
	if name == "" {
		name = credential
	}
	return Identity{ID: credential, DisplayName: name, IsGuest: true}
}

func (v *Verifier) lookupName(ctx context.Context, id string) string {
	if v.accounts == nil {
		return id
	}
	acct, err := v.accounts.FindByAccountID(ctx, id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Warn().Err(err).Str("identity_id", id).Msg("account lookup failed during handshake")
		}
		return id
	}
	if name := acct.DisplayName(); name != "" {
		return name
	}
	return id
}

// Issue signs a token for an account identity. Sign-in lives elsewhere; this
// exists for tooling and tests that need a valid credential.
func (v *Verifier) Issue(id Identity, ttl time.Duration) (string, error) {
	if id.IsGuest {
		return v.guestPrefix + id.DisplayName, nil
	}
	now := v.now()
	claims := accountClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  id.ID,
			IssuedAt: jwt.NewNumericDate(now),
		},
		AccountID: id.ID,
		Username:  id.DisplayName,
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenMalformed) ||
		errors.Is(err, jwt.ErrTokenSignatureInvalid) ||
		errors.Is(err, jwt.ErrTokenExpired) ||
		errors.Is(err, jwt.ErrTokenNotValidYet) ||
		errors.Is(err, jwt.ErrTokenUnverifiable) {
		return errors.Join(ErrInvalidCredential, err)
	}
	return ErrInvalidCredential
}

// CredentialFromRequest reads the token query parameter, then a bearer
// Authorization header.
func CredentialFromRequest(r *http.Request) string {
	if tok := strings.TrimSpace(r.URL.Query().Get("token")); tok != "" {
		return tok
	}
	return BearerToken(r)
}

func BearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}
