package server

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/arkaitz-dev/hashrand-sub000/internal/envelope"
	"github.com/arkaitz-dev/hashrand-sub000/internal/identity"
	"github.com/arkaitz-dev/hashrand-sub000/internal/magiclink"
	"github.com/arkaitz-dev/hashrand-sub000/internal/ratelimit"
	"github.com/arkaitz-dev/hashrand-sub000/internal/sharedsecret"
	"github.com/arkaitz-dev/hashrand-sub000/internal/token"
	"github.com/arkaitz-dev/hashrand-sub000/internal/xcrypto"
	"github.com/arkaitz-dev/hashrand-sub000/pkg/log"
	"github.com/arkaitz-dev/hashrand-sub000/storage/memory"
)

func testKey(b byte) []byte {
	k := make([]byte, 64)
	for i := range k {
		k[i] = b
	}
	return k
}

// newTestServer builds a Server wired to an in-memory store, a fixed
// clock, and a generous rate limiter, so handler tests exercise real
// crypto without timing flakiness.
func newTestServer(t *testing.T, now time.Time) *Server {
	t.Helper()
	return newTestServerWithNow(t, func() time.Time { return now })
}

// newTestServerClock is newTestServer but returns a setter that lets a
// test advance the server's clock between requests, for exercising the
// 2/3 rotation windows.
func newTestServerClock(t *testing.T, start time.Time) (*Server, func(time.Time)) {
	t.Helper()
	current := start
	s := newTestServerWithNow(t, func() time.Time { return current })
	return s, func(now time.Time) { current = now }
}

func newTestServerWithNow(t *testing.T, now func() time.Time) *Server {
	t.Helper()
	idKeys := identity.Keys{
		UserIDDerivation:  testKey(1),
		DBIndexDerivation: testKey(2),
		Ed25519Derivation: testKey(3),
		X25519Derivation:  testKey(4),
	}
	mlKeys := magiclink.Keys{
		Identity:     idKeys,
		ContentKey:   testKey(5),
		TokenHashKey: testKey(6),
	}
	ssKeys := sharedsecret.Keys{
		ChecksumKey:  testKey(7),
		URLCipherKey: testKey(8),
		ContentKey:   testKey(9),
		DBIndexKey:   testKey(10),
	}
	return New(
		memory.New(),
		idKeys,
		mlKeys,
		ssKeys,
		testKey(11),
		nil,
		ratelimit.New(1000, 1000, time.Hour),
		Expiry{AccessToken: 15 * time.Minute, RefreshToken: 30 * time.Minute, MagicLinkTTL: 10 * time.Minute},
		log.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		"development",
		now,
	)
}

// newClientKey generates a fresh client Ed25519 identity for signing
// requests, as the browser-side wallet would.
func newClientKey(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generating client key: %v", err)
	}
	return pub, priv
}

// signedBody builds the JSON body of a POST SignedRequest.
func signedBody(t *testing.T, payload map[string]interface{}, priv ed25519.PrivateKey) []byte {
	t.Helper()
	env, err := envelope.Sign(payload, priv)
	if err != nil {
		t.Fatalf("signing body envelope: %v", err)
	}
	b, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshaling body envelope: %v", err)
	}
	return b
}

// signedQuery builds the query string of a GET SignedRequest: every
// payload field (all strings) plus a trailing signature parameter.
func signedQuery(t *testing.T, payload map[string]interface{}, priv ed25519.PrivateKey) string {
	t.Helper()
	canonical, err := xcrypto.Canonical(payload)
	if err != nil {
		t.Fatalf("canonicalising query payload: %v", err)
	}
	sig := xcrypto.Sign(priv, canonical)

	q := url.Values{}
	for k, v := range payload {
		s, ok := v.(string)
		if !ok {
			t.Fatalf("query payload field %q is not a string", k)
		}
		q.Set(k, s)
	}
	q.Set("signature", xcrypto.Hex(sig))
	return q.Encode()
}

func doRequest(s *Server, method, target string, body []byte) *httptest.ResponseRecorder {
	var r *http.Request
	if body != nil {
		r = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, r)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var env envelope.Envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decoding response envelope: %v (body: %s)", err, w.Body.String())
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		t.Fatalf("decoding response payload: %v", err)
	}
	return payload
}

func newRecorderFor(s *Server, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, r)
	return w
}

// httpPostWithRefreshCookie builds a POST request carrying refreshToken
// as the HttpOnly refresh cookie, the transport /api/refresh expects.
func httpPostWithRefreshCookie(body []byte, refreshToken string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/api/refresh", bytes.NewReader(body))
	r.AddCookie(&http.Cookie{Name: refreshCookieName, Value: refreshToken})
	return r
}

func newAuthedRequest(t *testing.T, method, target string, body []byte, accessToken string) *http.Request {
	t.Helper()
	var r *http.Request
	if body != nil {
		r = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	r.Header.Set("Authorization", "Bearer "+accessToken)
	return r
}

// session bundles everything a handler test needs after a completed
// login, so refresh/keys/shared-secret tests don't repeat the
// issue+redeem dance inline.
type session struct {
	Claims       token.Claims
	AccessToken  string
	RefreshToken string
	ClientPub    ed25519.PublicKey
	ClientPriv   ed25519.PrivateKey
}

// loginSession drives a full issue+redeem login through the HTTP
// handlers for a fresh client key and returns the resulting session.
func loginSession(t *testing.T, s *Server) session {
	t.Helper()
	return loginSessionForEmail(t, s, "alice@example.com")
}

// loginSessionForEmail is loginSession for a caller-chosen email, so
// shared-secret tests can stand up distinct sender/receiver identities.
func loginSessionForEmail(t *testing.T, s *Server, email string) session {
	t.Helper()
	clientPub, clientPriv := newClientKey(t)

	issueBody := signedBody(t, map[string]interface{}{
		"email":   email,
		"ui_host": "https://app.example.com",
		"pub_key": xcrypto.Hex(clientPub),
	}, clientPriv)
	w := doRequest(s, http.MethodPost, "/api/login/", issueBody)
	if w.Code != http.StatusOK {
		t.Fatalf("issuing magic link: %d %s", w.Code, w.Body.String())
	}
	issuePayload := decodeEnvelope(t, w)
	linkURL, _ := issuePayload["dev_magic_link"].(string)
	idx := strings.Index(linkURL, "?magiclink=")
	if idx < 0 {
		t.Fatalf("dev_magic_link missing magiclink param: %q", linkURL)
	}
	magiclinkToken := linkURL[idx+len("?magiclink="):]

	q := signedQuery(t, map[string]interface{}{"magiclink": magiclinkToken, "pub_key": xcrypto.Hex(clientPub)}, clientPriv)
	target := "/api/login/?" + q
	w = doRequest(s, http.MethodGet, target, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("redeeming magic link: %d %s", w.Code, w.Body.String())
	}
	resp := decodeEnvelope(t, w)
	accessTok, _ := resp["access_token"].(string)
	if accessTok == "" {
		t.Fatal("redemption response missing access_token")
	}

	var refreshTok string
	for _, c := range w.Result().Cookies() {
		if c.Name == refreshCookieName {
			refreshTok = c.Value
		}
	}
	if refreshTok == "" {
		t.Fatal("redemption response missing refresh cookie")
	}

	claims, aerr := token.Verify(token.Token(accessTok), s.Identity)
	if aerr != nil {
		t.Fatalf("verifying issued access token: %v", aerr)
	}
	return session{
		Claims:       claims,
		AccessToken:  accessTok,
		RefreshToken: refreshTok,
		ClientPub:    clientPub,
		ClientPriv:   clientPriv,
	}
}
