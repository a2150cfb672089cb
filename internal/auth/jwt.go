// AngelaMos | 2026
// jwt.go

package auth

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/carterperez-dev/templates/media-rental/internal/config"
	"github.com/carterperez-dev/templates/media-rental/internal/core"
	"github.com/carterperez-dev/templates/media-rental/internal/middleware"
)

const (
	claimRole    = "role"
	claimVersion = "token_version"
	claimUse     = "type"
	useAccess    = "access"

	refreshTokenBytes = 32
)

// JWTManager signs access tokens with an ES256 key and publishes the
// matching public key as a JWKS document.
type JWTManager struct {
	signing   jwk.Key
	verifying jwk.Key
	jwks      jwk.Set
	cfg       config.JWTConfig
}

func NewJWTManager(cfg config.JWTConfig) (*JWTManager, error) {
	signing, err := readKey(cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("private key: %w", err)
	}
	if err := signing.Set(jwk.AlgorithmKey, jwa.ES256()); err != nil {
		return nil, fmt.Errorf("private key: %w", err)
	}
	if err := signing.Set(jwk.KeyIDKey, uuid.NewString()[:8]); err != nil {
		return nil, fmt.Errorf("private key: %w", err)
	}

	verifying, err := publicKeyFor(signing, cfg.PublicKeyPath)
	if err != nil {
		return nil, err
	}

	jwks := jwk.NewSet()
	if err := jwks.AddKey(verifying); err != nil {
		return nil, fmt.Errorf("build jwks: %w", err)
	}

	return &JWTManager{
		signing:   signing,
		verifying: verifying,
		jwks:      jwks,
		cfg:       cfg,
	}, nil
}

func readKey(path string) (jwk.Key, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return jwk.ParseKey(raw, jwk.WithPEM(true))
}

// publicKeyFor prefers the configured public key file and falls back to
// deriving it from the signing key. A file that does not match the signing
// key is a configuration error.
func publicKeyFor(signing jwk.Key, path string) (jwk.Key, error) {
	derived, err := signing.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("derive public key: %w", err)
	}

	if path != "" {
		onDisk, err := readKey(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("public key: %w", err)
		default:
			if !sameKey(onDisk, derived) {
				return nil, fmt.Errorf("public key %s does not match the private key", path)
			}
		}
	}

	for k, v := range map[string]any{
		jwk.KeyUsageKey:  "sig",
		jwk.AlgorithmKey: jwa.ES256(),
	} {
		if err := derived.Set(k, v); err != nil {
			return nil, fmt.Errorf("public key: %w", err)
		}
	}
	return derived, nil
}

func sameKey(a, b jwk.Key) bool {
	ta, errA := a.Thumbprint(crypto.SHA256)
	tb, errB := b.Thumbprint(crypto.SHA256)
	return errA == nil && errB == nil && string(ta) == string(tb)
}

// GenerateKeyPair writes a fresh P-256 key pair as PEM files.
func GenerateKeyPair(privateKeyPath, publicKeyPath string) error {
	raw, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}

	private, err := jwk.Import(raw)
	if err != nil {
		return fmt.Errorf("import key: %w", err)
	}
	public, err := private.PublicKey()
	if err != nil {
		return fmt.Errorf("derive public key: %w", err)
	}

	if err := writePEM(privateKeyPath, private, 0o600); err != nil {
		return err
	}
	return writePEM(publicKeyPath, public, 0o644)
}

func writePEM(path string, key jwk.Key, mode os.FileMode) error {
	pem, err := jwk.Pem(key)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, pem, mode); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// AccessTokenClaims carries the account type in the role claim so the
// role guards can tell sellers, customers and admins apart.
type AccessTokenClaims struct {
	UserID       string
	Role         string
	TokenVersion int
}

func (m *JWTManager) CreateAccessToken(claims AccessTokenClaims) (string, error) {
	now := time.Now()

	token, err := jwt.NewBuilder().
		JwtID(uuid.NewString()).
		Issuer(m.cfg.Issuer).
		Audience([]string{m.cfg.Audience}).
		Subject(claims.UserID).
		IssuedAt(now).
		NotBefore(now).
		Expiration(now.Add(m.cfg.AccessTokenExpire)).
		Claim(claimRole, claims.Role).
		Claim(claimVersion, claims.TokenVersion).
		Claim(claimUse, useAccess).
		Build()
	if err != nil {
		return "", fmt.Errorf("build access token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.ES256(), m.signing))
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return string(signed), nil
}

func (m *JWTManager) AccessTokenTTL() time.Duration {
	return m.cfg.AccessTokenExpire
}

func (m *JWTManager) VerifyAccessToken(
	_ context.Context,
	raw string,
) (*middleware.AccessTokenClaims, error) {
	token, err := jwt.Parse(
		[]byte(raw),
		jwt.WithKey(jwa.ES256(), m.verifying),
		jwt.WithValidate(true),
		jwt.WithIssuer(m.cfg.Issuer),
		jwt.WithAudience(m.cfg.Audience),
	)
	if err != nil {
		if expired(err) {
			return nil, fmt.Errorf("verify token: %w", core.ErrTokenExpired)
		}
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenInvalid)
	}

	var (
		use     string
		role    string
		version float64
	)
	for name, dst := range map[string]any{claimUse: &use, claimRole: &role, claimVersion: &version} {
		if err := token.Get(name, dst); err != nil {
			return nil, fmt.Errorf("verify token: claim %s: %w", name, core.ErrTokenInvalid)
		}
	}

	subject, _ := token.Subject()
	if use != useAccess || subject == "" {
		return nil, fmt.Errorf("verify token: not an access token: %w", core.ErrTokenInvalid)
	}

	jti, _ := token.JwtID()
	exp, _ := token.Expiration()

	return &middleware.AccessTokenClaims{
		UserID:       subject,
		Role:         role,
		TokenVersion: int(version),
		JTI:          jti,
		ExpiresAt:    exp,
	}, nil
}

func expired(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "exp") && strings.Contains(msg, "not satisfied")
}

func (m *JWTManager) GetJWKSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=3600")

		if err := json.NewEncoder(w).Encode(m.jwks); err != nil {
			core.InternalServerError(w, err)
		}
	}
}

func (m *JWTManager) GetKeyID() string {
	var kid string
	//nolint:errcheck // set in NewJWTManager
	_ = m.signing.Get(jwk.KeyIDKey, &kid)
	return kid
}

// RefreshTokenData is a freshly minted opaque refresh token. Only Hash is
// stored.
type RefreshTokenData struct {
	Token     string
	Hash      string
	ExpiresAt time.Time
	FamilyID  string
}

// CreateRefreshToken starts a new rotation family when familyID is empty.
func (m *JWTManager) CreateRefreshToken(familyID string) (*RefreshTokenData, error) {
	token, err := core.GenerateSecureToken(refreshTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	if familyID == "" {
		familyID = uuid.NewString()
	}

	return &RefreshTokenData{
		Token:     token,
		Hash:      core.HashToken(token),
		ExpiresAt: time.Now().Add(m.cfg.RefreshTokenExpire),
		FamilyID:  familyID,
	}, nil
}
