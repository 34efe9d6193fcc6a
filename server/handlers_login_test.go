package server

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arkaitz-dev/hashrand-sub000/internal/xcrypto"
)

func TestLoginIssueAndRedeemHappyPath(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	s := newTestServer(t, now)
	clientPub, clientPriv := newClientKey(t)

	issueBody := signedBody(t, map[string]interface{}{
		"email":   "Alice@Example.com",
		"ui_host": "https://app.example.com",
		"pub_key": xcrypto.Hex(clientPub),
	}, clientPriv)

	w := doRequest(s, http.MethodPost, "/api/login/", issueBody)
	require.Equal(t, http.StatusOK, w.Code)

	issuePayload := decodeEnvelope(t, w)
	require.Equal(t, "OK", issuePayload["status"])
	linkURL, ok := issuePayload["dev_magic_link"].(string)
	require.True(t, ok, "development environment should echo dev_magic_link")

	idx := strings.Index(linkURL, "?magiclink=")
	require.True(t, idx >= 0)
	magiclinkToken := linkURL[idx+len("?magiclink="):]

	redeemPayload := map[string]interface{}{"magiclink": magiclinkToken, "pub_key": xcrypto.Hex(clientPub)}
	q := signedQuery(t, redeemPayload, clientPriv)
	target := "/api/login/?" + q

	w = doRequest(s, http.MethodGet, target, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decodeEnvelope(t, w)
	require.NotEmpty(t, resp["access_token"])
	require.NotEmpty(t, resp["server_pub_key"])
	require.NotEmpty(t, resp["privkey_context_ciphertext"])
	require.NotEmpty(t, resp["privkey_context_nonce"])
	require.NotEmpty(t, resp["user_id_b58"])

	cookies := w.Result().Cookies()
	var refreshCookie *http.Cookie
	for _, c := range cookies {
		if c.Name == refreshCookieName {
			refreshCookie = c
		}
	}
	require.NotNil(t, refreshCookie, "redemption must set the refresh cookie")
	require.True(t, refreshCookie.HttpOnly)
	require.True(t, refreshCookie.Secure)
	require.Equal(t, http.SameSiteStrictMode, refreshCookie.SameSite)
}

// TestLoginRedeemWithBadSignatureDoesNotBurnLink guards against an
// attacker holding only the mailed token (no client private key): a
// redemption attempt with an invalid envelope signature must fail without
// marking the link consumed, so the legitimate client can still redeem it.
func TestLoginRedeemWithBadSignatureDoesNotBurnLink(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	s := newTestServer(t, now)
	clientPub, clientPriv := newClientKey(t)
	_, attackerPriv := newClientKey(t)

	issueBody := signedBody(t, map[string]interface{}{
		"email":   "alice@example.com",
		"ui_host": "https://app.example.com",
		"pub_key": xcrypto.Hex(clientPub),
	}, clientPriv)
	w := doRequest(s, http.MethodPost, "/api/login/", issueBody)
	require.Equal(t, http.StatusOK, w.Code)

	linkURL, _ := decodeEnvelope(t, w)["dev_magic_link"].(string)
	idx := strings.Index(linkURL, "?magiclink=")
	require.True(t, idx >= 0)
	magiclinkToken := linkURL[idx+len("?magiclink="):]

	badQuery := signedQuery(t, map[string]interface{}{"magiclink": magiclinkToken, "pub_key": xcrypto.Hex(clientPub)}, attackerPriv)
	badTarget := "/api/login/?" + badQuery
	w = doRequest(s, http.MethodGet, badTarget, nil)
	require.NotEqual(t, http.StatusOK, w.Code, "a forged envelope must not succeed")

	goodQuery := signedQuery(t, map[string]interface{}{"magiclink": magiclinkToken, "pub_key": xcrypto.Hex(clientPub)}, clientPriv)
	goodTarget := "/api/login/?" + goodQuery
	w = doRequest(s, http.MethodGet, goodTarget, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String(), "the legitimate client must still be able to redeem the link")
}

func TestLoginIssueRejectsInvalidEmail(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	s := newTestServer(t, now)
	clientPub, clientPriv := newClientKey(t)

	body := signedBody(t, map[string]interface{}{
		"email":   "not-an-email",
		"ui_host": "https://app.example.com",
		"pub_key": xcrypto.Hex(clientPub),
	}, clientPriv)

	w := doRequest(s, http.MethodPost, "/api/login/", body)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginIssueRejectsTamperedSignature(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	s := newTestServer(t, now)
	clientPub, clientPriv := newClientKey(t)

	body := signedBody(t, map[string]interface{}{
		"email":   "alice@example.com",
		"ui_host": "https://app.example.com",
		"pub_key": xcrypto.Hex(clientPub),
	}, clientPriv)
	tampered := strings.Replace(string(body), "example.com", "evil.example.com", 1)

	w := doRequest(s, http.MethodPost, "/api/login/", []byte(tampered))
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogout(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	s := newTestServer(t, now)
	sess := loginSession(t, s)

	body := signedBody(t, map[string]interface{}{"pub_key": sess.Claims.PubKeyHex}, sess.ClientPriv)
	r := newAuthedRequest(t, http.MethodDelete, "/api/login/", body, sess.AccessToken)
	w := newRecorderFor(s, r)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeEnvelope(t, w)
	require.Equal(t, "OK", resp["status"])

	var cleared bool
	for _, c := range w.Result().Cookies() {
		if c.Name == refreshCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	require.True(t, cleared, "logout must clear the refresh cookie")
}
