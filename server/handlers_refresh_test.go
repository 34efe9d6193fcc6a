package server

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arkaitz-dev/hashrand-sub000/internal/xcrypto"
)

func TestRefreshPeriod1of3MintsNewAccessTokenSameKey(t *testing.T) {
	start := time.Unix(1_700_000_000, 0).UTC()
	s, setNow := newTestServerClock(t, start)
	sess := loginSession(t, s)

	// Still well inside the first third of the refresh token's life.
	setNow(start.Add(2 * time.Minute))

	body := signedBody(t, map[string]interface{}{"pub_key": sess.Claims.PubKeyHex}, sess.ClientPriv)
	r := httpPostWithRefreshCookie(body, sess.RefreshToken)
	w := newRecorderFor(s, r)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeEnvelope(t, w)
	require.NotEmpty(t, resp["access_token"])
	require.NotEmpty(t, resp["expires_at_access"])

	var rotated bool
	for _, c := range w.Result().Cookies() {
		if c.Name == refreshCookieName {
			rotated = true
		}
	}
	require.False(t, rotated, "PERIOD 1/3 mints only an access token and leaves the refresh cookie as it is")
}

func TestRefreshPeriod2of3RotatesKey(t *testing.T) {
	start := time.Unix(1_700_000_000, 0).UTC()
	s, setNow := newTestServerClock(t, start)
	sess := loginSession(t, s)

	// 21 minutes into a 30-minute refresh TTL: past the 2/3 threshold.
	setNow(start.Add(21 * time.Minute))

	newPub, _ := newClientKey(t)
	body := signedBody(t, map[string]interface{}{
		"pub_key":     sess.Claims.PubKeyHex,
		"new_pub_key": xcrypto.Hex(newPub),
	}, sess.ClientPriv)
	r := httpPostWithRefreshCookie(body, sess.RefreshToken)
	w := newRecorderFor(s, r)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeEnvelope(t, w)
	require.NotEmpty(t, resp["access_token"])
	require.NotEmpty(t, resp["server_pub_key"])

	var rotatedToDifferentValue bool
	for _, c := range w.Result().Cookies() {
		if c.Name == refreshCookieName && c.Value != sess.RefreshToken {
			rotatedToDifferentValue = true
		}
	}
	require.True(t, rotatedToDifferentValue, "PERIOD 2/3 must issue a new refresh cookie bound to the new key")
}

// A rotation request signed by a key other than the one bound to the
// refresh cookie disagrees with the cookie's claims at envelope
// verification, before rotation logic ever runs: spec §4.5's
// SimultaneousIdentityTokens check.
func TestRefreshRejectsEnvelopeSignedByWrongKey(t *testing.T) {
	start := time.Unix(1_700_000_000, 0).UTC()
	s, setNow := newTestServerClock(t, start)
	sess := loginSession(t, s)
	setNow(start.Add(21 * time.Minute))

	attackerPub, attackerPriv := newClientKey(t)
	newPub, _ := newClientKey(t)
	body := signedBody(t, map[string]interface{}{
		"pub_key":     xcrypto.Hex(attackerPub),
		"new_pub_key": xcrypto.Hex(newPub),
	}, attackerPriv)
	r := httpPostWithRefreshCookie(body, sess.RefreshToken)
	w := newRecorderFor(s, r)

	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestRefreshPeriod3of3Rejected(t *testing.T) {
	start := time.Unix(1_700_000_000, 0).UTC()
	s, setNow := newTestServerClock(t, start)
	sess := loginSession(t, s)
	setNow(start.Add(31 * time.Minute))

	body := signedBody(t, map[string]interface{}{"pub_key": sess.Claims.PubKeyHex}, sess.ClientPriv)
	r := httpPostWithRefreshCookie(body, sess.RefreshToken)
	w := newRecorderFor(s, r)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}
