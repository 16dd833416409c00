package auth

import (
	"net/http"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// Middleware returns the echo-jwt handler that gates every /x/ route behind
// a bearer token, storing the parsed *jwt.Token under ctx key "user"; its
// Raw field is the token string Verifier.ClaimValue takes.
func Middleware(secret string) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		SigningKey: []byte(secret),
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusUnauthorized, "Error: invalid or missing bearer token")
		},
	})
}

// JWKSVerifier resolves signing keys from a remote JWKS endpoint instead of
// a shared HMAC secret, for deployments fronted by an external identity
// provider. Kept separate from Verifier since it has its own refresh cycle.
type JWKSVerifier struct {
	set jwk.Set
}

func NewJWKSVerifier(set jwk.Set) *JWKSVerifier {
	return &JWKSVerifier{set: set}
}

func (v *JWKSVerifier) Key(keyID string) (interface{}, bool) {
	key, ok := v.set.LookupKeyID(keyID)
	if !ok {
		return nil, false
	}
	var raw interface{}
	if err := key.Raw(&raw); err != nil {
		return nil, false
	}
	return raw, true
}
