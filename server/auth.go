package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/arkaitz-dev/hashrand-sub000/internal/apierror"
	"github.com/arkaitz-dev/hashrand-sub000/internal/token"
)

const refreshCookieName = "hashrand_refresh"

// authenticate extracts and verifies the bearer access token of a
// protected request, enforcing TokenExpired (spec §7).
func (s *Server) authenticate(r *http.Request) (token.Claims, *apierror.Error) {
	authz := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(authz, prefix) {
		return token.Claims{}, apierror.New(apierror.BadEnvelope)
	}

	claims, aerr := token.Verify(token.Token(strings.TrimPrefix(authz, prefix)), s.Identity)
	if aerr != nil {
		return token.Claims{}, aerr
	}
	if claims.TokenType != token.TypeAccess {
		return token.Claims{}, apierror.New(apierror.BadEnvelope)
	}
	if claims.IsExpired(s.Now()) {
		return token.Claims{}, apierror.New(apierror.TokenExpired)
	}
	return claims, nil
}

// refreshClaims extracts and verifies the HttpOnly refresh cookie,
// without rejecting on expiry — PERIOD 3/3 is a normal, expected outcome
// the caller classifies rather than an error here.
func (s *Server) refreshClaims(r *http.Request) (token.Claims, *apierror.Error) {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil {
		return token.Claims{}, apierror.New(apierror.RefreshExpired)
	}
	claims, aerr := token.Verify(token.Token(cookie.Value), s.Identity)
	if aerr != nil {
		return token.Claims{}, aerr
	}
	if claims.TokenType != token.TypeRefresh {
		return token.Claims{}, apierror.New(apierror.BadEnvelope)
	}
	return claims, nil
}

// setRefreshCookie issues the HttpOnly/Secure/SameSite=Strict cookie of
// spec §4.3's "refresh token is emitted as ... cookie scoped to /".
func setRefreshCookie(w http.ResponseWriter, tok token.Token, expiresAt int64) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    string(tok),
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Unix(expiresAt, 0),
	})
}

// clearRefreshCookie implements the logout endpoint's cookie-clearing
// contract.
func clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
}
