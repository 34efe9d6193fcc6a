package server

import (
	"context"
	"crypto/ed25519"
	"net/http"
	"net/mail"

	"github.com/arkaitz-dev/hashrand-sub000/internal/apierror"
	"github.com/arkaitz-dev/hashrand-sub000/internal/identity"
	"github.com/arkaitz-dev/hashrand-sub000/internal/magiclink"
	"github.com/arkaitz-dev/hashrand-sub000/internal/token"
	"github.com/arkaitz-dev/hashrand-sub000/internal/xcrypto"
)

type loginIssuePayload struct {
	Email     string `json:"email"`
	UIHost    string `json:"ui_host"`
	EmailLang string `json:"email_lang"`
	Next      string `json:"next"`
	PubKey    string `json:"pub_key"`
}

// handleLoginIssue implements POST /api/login/, spec §4.3's issuance
// flow.
func (s *Server) handleLoginIssue(w http.ResponseWriter, r *http.Request) {
	if !s.Limiter.Allow(remoteIP(r), s.Now()) {
		s.metrics.rateLimited.Inc()
		writeError(w, s.Logger, apierror.New(apierror.RateLimited))
		return
	}

	decoded, aerr := verifyEnvelopeBody(r, nil)
	if aerr != nil {
		writeError(w, s.Logger, aerr)
		return
	}

	var p loginIssuePayload
	if err := decodeInto(decoded, &p); err != nil {
		writeError(w, s.Logger, apierror.New(apierror.BadEnvelope))
		return
	}

	if _, err := mail.ParseAddress(p.Email); err != nil {
		writeError(w, s.Logger, apierror.New(apierror.InvalidEmail))
		return
	}

	result, err := magiclink.Issue(s.Storage, s.MagicLink, magiclink.IssueRequest{
		Email:        p.Email,
		UIHost:       p.UIHost,
		EmailLang:    p.EmailLang,
		Next:         p.Next,
		ClientPubHex: p.PubKey,
	}, s.Expiry.MagicLinkTTL, s.Now())
	if err != nil {
		writeError(w, s.Logger, apierror.AsError(err))
		return
	}

	if s.Mailer != nil {
		msg := mailerMessage(p.Email, result.LinkURL, p.UIHost, s.Expiry.MagicLinkTTL)
		if err := s.Mailer.SendMagicLink(context.Background(), msg); err != nil {
			s.Logger.Errorf("sending magic link: %v", err)
		}
	}

	response := map[string]interface{}{"status": "OK"}
	if s.Environment == "development" {
		response["dev_magic_link"] = result.LinkURL
	}

	serverPriv := identity.DeriveServerEd25519(s.Identity, result.UserID, p.PubKey)
	writeSignedResponse(w, s.Logger, response, serverPriv)
}

// handleLoginRedeem implements GET /api/login/?magiclink=…, spec §4.3's
// redemption flow: magiclink.Peek does steps 1-3 (decode, fetch, decrypt)
// without mutating storage, the envelope is verified against the decrypted
// client key, and only then does magiclink.Confirm perform step 4
// (mark consumed) before the rest of this handler performs steps 5-8.
func (s *Server) handleLoginRedeem(w http.ResponseWriter, r *http.Request) {
	tokenB58 := r.URL.Query().Get("magiclink")
	if tokenB58 == "" {
		writeError(w, s.Logger, apierror.New(apierror.MagicLinkInvalid))
		return
	}

	now := s.Now()
	redeemed, err := magiclink.Peek(s.Storage, s.MagicLink, tokenB58, now)
	if err != nil {
		writeError(w, s.Logger, apierror.AsError(err))
		return
	}
	payload := redeemed.Payload
	clientPubHex := xcrypto.Hex(payload.ClientPub[:])

	if _, aerr := verifyEnvelopeQuery(r, &token.Claims{PubKeyHex: clientPubHex}); aerr != nil {
		writeError(w, s.Logger, aerr)
		return
	}

	if err := magiclink.Confirm(s.Storage, redeemed, now); err != nil {
		writeError(w, s.Logger, apierror.AsError(err))
		return
	}
	if _, err := s.Storage.UpsertUser(payload.UserID, now); err != nil {
		writeError(w, s.Logger, apierror.AsError(err))
		return
	}

	dbIndex := identity.DeriveDBIndex(s.Identity, payload.UserID)
	privkeyPlaintext, err := magiclink.GetOrCreatePrivkeyContext(s.Storage, s.PrivkeyContextKey, dbIndex, uint16(now.Year()))
	if err != nil {
		writeError(w, s.Logger, apierror.AsError(err))
		return
	}

	userIDB58 := xcrypto.Base58(payload.UserID[:])
	pair, _ := token.Issue(s.Identity, userIDB58, clientPubHex, token.NewSessionID(), now, s.Expiry.AccessToken, s.Expiry.RefreshToken)

	serverX25519Priv, _, err := identity.DeriveServerX25519(s.Identity, payload.UserID, clientPubHex)
	if err != nil {
		writeError(w, s.Logger, apierror.AsError(err))
		return
	}
	var clientEd25519Pub [32]byte
	copy(clientEd25519Pub[:], payload.ClientPub[:])
	sealed, err := magiclink.SealToClient(serverX25519Priv, clientEd25519Pub[:], privkeyPlaintext)
	if err != nil {
		writeError(w, s.Logger, apierror.AsError(err))
		return
	}

	setRefreshCookie(w, pair.Refresh, pair.ExpiresAtRefresh)

	serverPriv := identity.DeriveServerEd25519(s.Identity, payload.UserID, clientPubHex)
	serverPub := serverPriv.Public().(ed25519.PublicKey)

	response := map[string]interface{}{
		"access_token":               pair.Access,
		"expires_at_access":          pair.ExpiresAtAccess,
		"expires_at_refresh":         pair.ExpiresAtRefresh,
		"server_pub_key":             xcrypto.Hex(serverPub),
		"privkey_context_ciphertext": xcrypto.Hex(sealed.Ciphertext),
		"privkey_context_nonce":      xcrypto.Hex(sealed.Nonce),
		"user_id_b58":                userIDB58,
		"next":                       payload.Next,
	}
	writeSignedResponse(w, s.Logger, response, serverPriv)
}

// handleLogout implements DELETE /api/login/: the client proves
// possession of a valid access token and the server clears the refresh
// cookie. Tokens are stateless, so there is no server-side session row
// to invalidate.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims, aerr := s.authenticate(r)
	if aerr != nil {
		writeError(w, s.Logger, aerr)
		return
	}
	if _, aerr := verifyEnvelopeBody(r, &claims); aerr != nil {
		writeError(w, s.Logger, aerr)
		return
	}

	clearRefreshCookie(w)

	var uid [16]byte
	copy(uid[:], xcrypto.MustDecodeBase58(claims.Sub))
	serverPriv := identity.DeriveServerEd25519(s.Identity, uid, claims.PubKeyHex)
	writeSignedResponse(w, s.Logger, map[string]interface{}{"status": "OK"}, serverPriv)
}

