package server

import (
	"net/http"
	"time"

	"github.com/arkaitz-dev/hashrand-sub000/internal/apierror"
	"github.com/arkaitz-dev/hashrand-sub000/internal/identity"
	"github.com/arkaitz-dev/hashrand-sub000/internal/sharedsecret"
)

type sharedSecretCreatePayload struct {
	ReceiverEmail string `json:"receiver_email"`
	Secret        string `json:"secret"`
	PendingReads  uint32 `json:"pending_reads"`
	TTLMinutes    int64  `json:"ttl_minutes"`
}

// handleSharedSecretCreate implements POST /api/shared-secret, spec
// §4.6's pair construction.
func (s *Server) handleSharedSecretCreate(w http.ResponseWriter, r *http.Request) {
	claims, aerr := s.authenticate(r)
	if aerr != nil {
		writeError(w, s.Logger, aerr)
		return
	}
	decoded, aerr := verifyEnvelopeBody(r, &claims)
	if aerr != nil {
		writeError(w, s.Logger, aerr)
		return
	}

	var p sharedSecretCreatePayload
	if err := decodeInto(decoded, &p); err != nil {
		writeError(w, s.Logger, apierror.New(apierror.BadEnvelope))
		return
	}

	senderID, aerr := decodeUserID(claims.Sub)
	if aerr != nil {
		writeError(w, s.Logger, aerr)
		return
	}
	receiverID := identity.DeriveUserID(s.Identity, identity.Normalize(p.ReceiverEmail))

	ttl := s.Expiry.MagicLinkTTL
	if p.TTLMinutes > 0 {
		ttl = time.Duration(p.TTLMinutes) * time.Minute
	}
	pendingReads := p.PendingReads
	if pendingReads == 0 {
		pendingReads = 1
	}

	result, err := sharedsecret.Create(s.Storage, s.SharedSecret, sharedsecret.CreateRequest{
		SenderUserID:   senderID,
		ReceiverUserID: receiverID,
		Secret:         p.Secret,
		PendingReads:   pendingReads,
		TTL:            ttl,
	}, s.Now())
	if err != nil {
		writeError(w, s.Logger, apierror.AsError(err))
		return
	}

	serverPriv := identity.DeriveServerEd25519(s.Identity, senderID, claims.PubKeyHex)
	response := map[string]interface{}{
		"sender_url":   result.SenderURL,
		"receiver_url": result.ReceiverURL,
	}
	writeSignedResponse(w, s.Logger, response, serverPriv)
}

// handleSharedSecretGet implements GET /api/shared-secret?hash=…, spec
// §4.6's three-layer-validated access.
func (s *Server) handleSharedSecretGet(w http.ResponseWriter, r *http.Request) {
	claims, aerr := s.authenticate(r)
	if aerr != nil {
		writeError(w, s.Logger, aerr)
		return
	}
	if _, aerr := verifyEnvelopeQuery(r, &claims); aerr != nil {
		writeError(w, s.Logger, aerr)
		return
	}

	hash := r.URL.Query().Get("hash")
	callerID, aerr := decodeUserID(claims.Sub)
	if aerr != nil {
		writeError(w, s.Logger, aerr)
		return
	}

	payload, err := sharedsecret.Access(s.Storage, s.SharedSecret, hash, callerID, s.Now())
	if err != nil {
		writeError(w, s.Logger, apierror.AsError(err))
		return
	}

	serverPriv := identity.DeriveServerEd25519(s.Identity, callerID, claims.PubKeyHex)
	response := map[string]interface{}{
		"secret": payload.Secret,
		"otp":    payload.OTP,
	}
	writeSignedResponse(w, s.Logger, response, serverPriv)
}

// handleSharedSecretDelete implements DELETE /api/shared-secret?hash=…,
// the sender-only deletion operation of spec §4.6. Not named in the §6
// endpoint table's POST/GET pair, but internal/sharedsecret.Delete is a
// real operation that needs a host, so it is hosted here rather than left
// unreachable.
func (s *Server) handleSharedSecretDelete(w http.ResponseWriter, r *http.Request) {
	claims, aerr := s.authenticate(r)
	if aerr != nil {
		writeError(w, s.Logger, aerr)
		return
	}
	if _, aerr := verifyEnvelopeQuery(r, &claims); aerr != nil {
		writeError(w, s.Logger, aerr)
		return
	}

	hash := r.URL.Query().Get("hash")
	callerID, aerr := decodeUserID(claims.Sub)
	if aerr != nil {
		writeError(w, s.Logger, aerr)
		return
	}

	if err := sharedsecret.Delete(s.Storage, s.SharedSecret, hash, callerID); err != nil {
		writeError(w, s.Logger, apierror.AsError(err))
		return
	}

	serverPriv := identity.DeriveServerEd25519(s.Identity, callerID, claims.PubKeyHex)
	writeSignedResponse(w, s.Logger, map[string]interface{}{"status": "OK"}, serverPriv)
}
