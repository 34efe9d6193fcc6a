package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arkaitz-dev/hashrand-sub000/internal/xcrypto"
)

func TestKeysRotatePublishesThenUserKeysListsThem(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	s := newTestServer(t, now)
	sess := loginSession(t, s)

	ed25519Pub := xcrypto.Hex([]byte(strings.Repeat("a", 32)))
	x25519Pub := xcrypto.Hex([]byte(strings.Repeat("b", 32)))

	body := signedBody(t, map[string]interface{}{
		"ed25519_pub_key": ed25519Pub,
		"x25519_pub_key":  x25519Pub,
	}, sess.ClientPriv)
	r := newAuthedRequest(t, http.MethodPost, "/api/keys/rotate", body, sess.AccessToken)
	w := newRecorderFor(s, r)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, "OK", decodeEnvelope(t, w)["status"])

	q := signedQuery(t, map[string]interface{}{"target_user": sess.Claims.Sub}, sess.ClientPriv)
	r = newAuthedRequest(t, http.MethodGet, "/api/user/keys/?"+q, nil, sess.AccessToken)
	w = newRecorderFor(s, r)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decodeEnvelope(t, w)
	edList, ok := resp["ed25519_keys"].([]interface{})
	require.True(t, ok)
	require.Contains(t, edList, ed25519Pub)
	xList, ok := resp["x25519_keys"].([]interface{})
	require.True(t, ok)
	require.Contains(t, xList, x25519Pub)
}

func TestKeysRotateIsIdempotent(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	s := newTestServer(t, now)
	sess := loginSession(t, s)

	edPub := xcrypto.Hex([]byte(strings.Repeat("c", 32)))
	for i := 0; i < 2; i++ {
		body := signedBody(t, map[string]interface{}{"ed25519_pub_key": edPub}, sess.ClientPriv)
		r := newAuthedRequest(t, http.MethodPost, "/api/keys/rotate", body, sess.AccessToken)
		w := newRecorderFor(s, r)
		require.Equal(t, http.StatusOK, w.Code)
	}

	q := signedQuery(t, map[string]interface{}{"target_user": sess.Claims.Sub}, sess.ClientPriv)
	r := newAuthedRequest(t, http.MethodGet, "/api/user/keys/?"+q, nil, sess.AccessToken)
	w := newRecorderFor(s, r)
	resp := decodeEnvelope(t, w)
	edList := resp["ed25519_keys"].([]interface{})
	require.Len(t, edList, 1, "publishing the same key twice must yield one row")
}

func TestUserKeysRequiresBearerToken(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	s := newTestServer(t, now)
	sess := loginSession(t, s)

	q := signedQuery(t, map[string]interface{}{"target_user": sess.Claims.Sub}, sess.ClientPriv)
	r := httptest.NewRequest(http.MethodGet, "/api/user/keys/?"+q, nil)
	w := newRecorderFor(s, r)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
