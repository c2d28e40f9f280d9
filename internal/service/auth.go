package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/twosmallonions/recipes/backend/config"
	"github.com/twosmallonions/recipes/backend/internal/apperrors"
	"github.com/twosmallonions/recipes/backend/internal/types"
	"go.uber.org/zap"
)

// AuthErrorKey is the AppError meta key carrying the bearer challenge
// error code.
const AuthErrorKey = "auth_error"

// Bearer challenge error codes.
const (
	AuthCredentialsRequired  = "credentials_required"
	AuthCredentialsBadScheme = "credentials_bad_scheme"
	AuthCredentialsBadFormat = "credentials_bad_format"
	AuthInvalidToken         = "invalid_token"
)

// DefaultLeeway tolerates clock skew between us and the identity provider.
const DefaultLeeway = 20 * time.Second

// UnauthorizedError builds the error every authentication failure maps to.
func UnauthorizedError(code, description string, cause error) *apperrors.AppError {
	return apperrors.Wrap(cause, apperrors.CodeUnauthorized, description).
		WithMeta(AuthErrorKey, code)
}

// VerifierOptions are the claim checks applied to every token.
type VerifierOptions struct {
	Issuer     string
	Audience   string
	Algorithms []string
	Leeway     time.Duration
}

// TokenVerifier validates bearer tokens issued by an external identity
// provider.
type TokenVerifier struct {
	keyfunc jwt.Keyfunc
	parser  *jwt.Parser
}

// NewTokenVerifier creates a verifier that resolves signing keys through
// keyfunc.
func NewTokenVerifier(keyfunc jwt.Keyfunc, opts VerifierOptions) *TokenVerifier {
	if opts.Leeway == 0 {
		opts.Leeway = DefaultLeeway
	}
	parserOpts := []jwt.ParserOption{
		jwt.WithIssuer(opts.Issuer),
		jwt.WithLeeway(opts.Leeway),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if len(opts.Algorithms) > 0 {
		parserOpts = append(parserOpts, jwt.WithValidMethods(opts.Algorithms))
	}
	if opts.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(opts.Audience))
	}
	return &TokenVerifier{
		keyfunc: keyfunc,
		parser:  jwt.NewParser(parserOpts...),
	}
}

// ValidateToken verifies the signature and claims of a raw token.
func (v *TokenVerifier) ValidateToken(raw string) (*types.TokenClaims, error) {
	claims := &types.TokenClaims{}
	token, err := v.parser.ParseWithClaims(raw, claims, v.keyfunc)
	if err != nil {
		return nil, UnauthorizedError(AuthInvalidToken, describeTokenError(err), err)
	}
	if !token.Valid {
		return nil, UnauthorizedError(AuthInvalidToken, "invalid token", nil)
	}
	if claims.Subject == "" {
		return nil, UnauthorizedError(AuthInvalidToken, "missing required claim: sub", nil)
	}
	return claims, nil
}

func describeTokenError(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "jwt malformed"
	case errors.Is(err, jwt.ErrTokenExpired):
		return "jwt expired"
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return "jwt not active"
	case errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return "jwt issued in the future"
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return "unexpected iss value"
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return "unexpected aud value"
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return "missing required claim"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "invalid signature"
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return "unable to verify token"
	default:
		return "invalid token"
	}
}

// NewJWKSVerifier builds a verifier backed by the identity provider's
// published key set. The key set URL is discovered from the issuer when
// not configured.
func NewJWKSVerifier(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*TokenVerifier, error) {
	jwksURL := cfg.OIDCJWKSURL
	if jwksURL == "" {
		var err error
		jwksURL, err = DiscoverJWKSURL(ctx, http.DefaultClient, cfg.OIDCIssuer)
		if err != nil {
			return nil, err
		}
	}

	k, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("failed to load jwks from %s: %w", jwksURL, err)
	}
	logger.Info("token verifier ready",
		zap.String("issuer", cfg.OIDCIssuer),
		zap.String("jwks_url", jwksURL),
		zap.Strings("algorithms", cfg.OIDCAlgorithms))

	return NewTokenVerifier(k.Keyfunc, VerifierOptions{
		Issuer:     cfg.OIDCIssuer,
		Audience:   cfg.OIDCAudience,
		Algorithms: cfg.OIDCAlgorithms,
	}), nil
}

type openIDConfiguration struct {
	Issuer  string `json:"issuer"`
	JWKSURI string `json:"jwks_uri"`
}

// DiscoverJWKSURL reads jwks_uri from the issuer's OpenID configuration.
func DiscoverJWKSURL(ctx context.Context, client *http.Client, issuer string) (string, error) {
	wellKnown := strings.TrimSuffix(issuer, "/") + "/.well-known/openid-configuration"

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wellKnown, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build discovery request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("openid discovery failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openid discovery returned status %d", resp.StatusCode)
	}

	var doc openIDConfiguration
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return "", fmt.Errorf("failed to decode openid configuration: %w", err)
	}
	if doc.JWKSURI == "" {
		return "", errors.New("openid configuration has no jwks_uri")
	}
	return doc.JWKSURI, nil
}
