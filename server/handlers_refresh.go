package server

import (
	"net/http"
	"time"

	"github.com/arkaitz-dev/hashrand-sub000/internal/apierror"
	"github.com/arkaitz-dev/hashrand-sub000/internal/token"
)

// handleRefresh implements POST /api/refresh, spec §4.4's 2/3 rotation
// state machine.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	refreshClaims, aerr := s.refreshClaims(r)
	if aerr != nil {
		writeError(w, s.Logger, aerr)
		return
	}

	now := s.Now()
	if refreshClaims.IsExpired(now) {
		writeError(w, s.Logger, apierror.New(apierror.RefreshExpired))
		return
	}

	payload, aerr := verifyEnvelopeBody(r, &refreshClaims)
	if aerr != nil {
		writeError(w, s.Logger, aerr)
		return
	}

	age := now.Sub(time.Unix(refreshClaims.IssuedAt, 0))
	switch token.Classify(age, s.Expiry.RefreshToken) {
	case token.Period3of3:
		writeError(w, s.Logger, apierror.New(apierror.RefreshExpired))

	case token.Period1of3:
		s.refreshPeriod1of3(w, refreshClaims, now)

	case token.Period2of3:
		s.refreshPeriod2of3(w, refreshClaims, payload, now)
	}
}

func (s *Server) refreshPeriod1of3(w http.ResponseWriter, refreshClaims token.Claims, now time.Time) {
	// Only the access token of the issued pair is handed out; the refresh
	// cookie is left as it is, so the refresh token keeps aging toward the
	// PERIOD 2/3 rotation window.
	pair, serverPriv := token.Issue(s.Identity, refreshClaims.Sub, refreshClaims.PubKeyHex, refreshClaims.SessionID, now, s.Expiry.AccessToken, s.Expiry.RefreshToken)

	response := map[string]interface{}{
		"access_token":       pair.Access,
		"expires_at_access":  pair.ExpiresAtAccess,
		"expires_at_refresh": refreshClaims.ExpiresAt,
	}
	writeSignedResponse(w, s.Logger, response, serverPriv)
}

func (s *Server) refreshPeriod2of3(w http.ResponseWriter, refreshClaims token.Claims, payload map[string]interface{}, now time.Time) {
	newPubHex, _ := payload["new_pub_key"].(string)
	if newPubHex == "" {
		writeError(w, s.Logger, apierror.New(apierror.RotationFailed))
		return
	}
	// The old-key binding is already enforced above: verifyEnvelopeBody
	// rejected this request unless it was signed by refreshClaims.PubKeyHex.

	sessionID := token.NewSessionID()

	// Issue is a pure function of its arguments, so calling it here to
	// build the response body and again inside Rotate (to derive the
	// dual-signed envelope) yields byte-identical tokens.
	pair, _ := token.Issue(s.Identity, refreshClaims.Sub, newPubHex, sessionID, now, s.Expiry.AccessToken, s.Expiry.RefreshToken)
	basePayload := map[string]interface{}{
		"access_token":       pair.Access,
		"expires_at_access":  pair.ExpiresAtAccess,
		"expires_at_refresh": pair.ExpiresAtRefresh,
	}

	result, err := token.Rotate(s.Identity, refreshClaims.Sub, refreshClaims.PubKeyHex, newPubHex, sessionID, now, s.Expiry.AccessToken, s.Expiry.RefreshToken, basePayload)
	if err != nil {
		writeError(w, s.Logger, apierror.AsError(err))
		return
	}

	setRefreshCookie(w, result.Pair.Refresh, result.Pair.ExpiresAtRefresh)
	s.metrics.rotations.Inc()
	writeSignedEnvelope(w, result.Env)
}
