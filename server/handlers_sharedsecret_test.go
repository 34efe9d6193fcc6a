package server

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSharedSecretCreateAccessDeleteAsymmetry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	s := newTestServer(t, now)
	sender := loginSession(t, s)

	createBody := signedBody(t, map[string]interface{}{
		"receiver_email": "bob@example.com",
		"secret":         "the launch codes",
		"pending_reads":  float64(1),
	}, sender.ClientPriv)
	r := newAuthedRequest(t, http.MethodPost, "/api/shared-secret", createBody, sender.AccessToken)
	w := newRecorderFor(s, r)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	created := decodeEnvelope(t, w)
	senderURL, _ := created["sender_url"].(string)
	receiverURL, _ := created["receiver_url"].(string)
	require.NotEmpty(t, senderURL)
	require.NotEmpty(t, receiverURL)
	require.NotEqual(t, senderURL, receiverURL)

	// The sender can read its half and sees the OTP.
	q := signedQuery(t, map[string]interface{}{"hash": senderURL}, sender.ClientPriv)
	r = newAuthedRequest(t, http.MethodGet, "/api/shared-secret?"+q, nil, sender.AccessToken)
	w = newRecorderFor(s, r)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	senderView := decodeEnvelope(t, w)
	require.Equal(t, "the launch codes", senderView["secret"])
	require.NotEmpty(t, senderView["otp"])

	// The receiver (bob) can read its own half but never sees the OTP,
	// and doing so consumes the one pending read.
	receiver := loginSessionForEmail(t, s, "bob@example.com")
	q = signedQuery(t, map[string]interface{}{"hash": receiverURL}, receiver.ClientPriv)
	r = newAuthedRequest(t, http.MethodGet, "/api/shared-secret?"+q, nil, receiver.AccessToken)
	w = newRecorderFor(s, r)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	receiverView := decodeEnvelope(t, w)
	require.Equal(t, "the launch codes", receiverView["secret"])
	require.Empty(t, receiverView["otp"], "the receiver role never sees the OTP")

	// pending_reads is now exhausted: a second receiver read fails.
	q = signedQuery(t, map[string]interface{}{"hash": receiverURL}, receiver.ClientPriv)
	r = newAuthedRequest(t, http.MethodGet, "/api/shared-secret?"+q, nil, receiver.AccessToken)
	w = newRecorderFor(s, r)
	require.NotEqual(t, http.StatusOK, w.Code)

	// The receiver cannot delete the pair — sender-only.
	q = signedQuery(t, map[string]interface{}{"hash": receiverURL}, receiver.ClientPriv)
	r = newAuthedRequest(t, http.MethodDelete, "/api/shared-secret?"+q, nil, receiver.AccessToken)
	w = newRecorderFor(s, r)
	require.Equal(t, http.StatusForbidden, w.Code)

	// The sender can delete its pair.
	q = signedQuery(t, map[string]interface{}{"hash": senderURL}, sender.ClientPriv)
	r = newAuthedRequest(t, http.MethodDelete, "/api/shared-secret?"+q, nil, sender.AccessToken)
	w = newRecorderFor(s, r)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestSharedSecretAccessRejectsForeignCaller(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	s := newTestServer(t, now)
	sender := loginSession(t, s)

	createBody := signedBody(t, map[string]interface{}{
		"receiver_email": "bob@example.com",
		"secret":         "top secret",
		"pending_reads":  float64(1),
	}, sender.ClientPriv)
	r := newAuthedRequest(t, http.MethodPost, "/api/shared-secret", createBody, sender.AccessToken)
	w := newRecorderFor(s, r)
	created := decodeEnvelope(t, w)
	senderURL, _ := created["sender_url"].(string)

	stranger := loginSessionForEmail(t, s, "mallory@example.com")
	q := signedQuery(t, map[string]interface{}{"hash": senderURL}, stranger.ClientPriv)
	r = newAuthedRequest(t, http.MethodGet, "/api/shared-secret?"+q, nil, stranger.AccessToken)
	w = newRecorderFor(s, r)
	require.Equal(t, http.StatusForbidden, w.Code)
}
