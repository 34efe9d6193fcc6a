package server

import (
	"net/http"

	"github.com/arkaitz-dev/hashrand-sub000/internal/apierror"
	"github.com/arkaitz-dev/hashrand-sub000/internal/identity"
	"github.com/arkaitz-dev/hashrand-sub000/internal/xcrypto"
	"github.com/arkaitz-dev/hashrand-sub000/storage"
)

type keysRotatePayload struct {
	Ed25519PubKey string `json:"ed25519_pub_key"`
	X25519PubKey  string `json:"x25519_pub_key"`
}

// handleKeysRotate implements POST /api/keys/rotate: publishing a new
// long-lived Ed25519/X25519 public key is idempotent per spec §8 ("POSTing
// the same public key twice yields one row").
func (s *Server) handleKeysRotate(w http.ResponseWriter, r *http.Request) {
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

	var p keysRotatePayload
	if err := decodeInto(decoded, &p); err != nil {
		writeError(w, s.Logger, apierror.New(apierror.BadEnvelope))
		return
	}

	userID, aerr := decodeUserID(claims.Sub)
	if aerr != nil {
		writeError(w, s.Logger, aerr)
		return
	}

	now := s.Now()
	if p.Ed25519PubKey != "" {
		if err := s.Storage.InsertEd25519Key(storage.Ed25519Key{UserID: userID, PubKeyHex: p.Ed25519PubKey, CreatedAt: now.Unix()}); err != nil {
			writeError(w, s.Logger, apierror.AsError(err))
			return
		}
	}
	if p.X25519PubKey != "" {
		if err := s.Storage.InsertX25519Key(storage.X25519Key{UserID: userID, PubKeyHex: p.X25519PubKey, CreatedAt: now.Unix()}); err != nil {
			writeError(w, s.Logger, apierror.AsError(err))
			return
		}
	}

	serverPriv := identity.DeriveServerEd25519(s.Identity, userID, claims.PubKeyHex)
	writeSignedResponse(w, s.Logger, map[string]interface{}{"status": "OK"}, serverPriv)
}

// handleUserKeys implements GET /api/user/keys/?target_user=…: retrieve
// another user's published long-lived public keys.
func (s *Server) handleUserKeys(w http.ResponseWriter, r *http.Request) {
	claims, aerr := s.authenticate(r)
	if aerr != nil {
		writeError(w, s.Logger, aerr)
		return
	}
	if _, aerr := verifyEnvelopeQuery(r, &claims); aerr != nil {
		writeError(w, s.Logger, aerr)
		return
	}

	targetB58 := r.URL.Query().Get("target_user")
	targetID, aerr := decodeUserID(targetB58)
	if aerr != nil {
		writeError(w, s.Logger, aerr)
		return
	}

	ed25519Keys, err := s.Storage.ListEd25519Keys(targetID)
	if err != nil {
		writeError(w, s.Logger, apierror.AsError(err))
		return
	}
	x25519Keys, err := s.Storage.ListX25519Keys(targetID)
	if err != nil {
		writeError(w, s.Logger, apierror.AsError(err))
		return
	}

	ed := make([]string, len(ed25519Keys))
	for i, k := range ed25519Keys {
		ed[i] = k.PubKeyHex
	}
	x := make([]string, len(x25519Keys))
	for i, k := range x25519Keys {
		x[i] = k.PubKeyHex
	}

	var userID [16]byte
	copy(userID[:], xcrypto.MustDecodeBase58(claims.Sub))
	serverPriv := identity.DeriveServerEd25519(s.Identity, userID, claims.PubKeyHex)

	response := map[string]interface{}{
		"target_user":  targetB58,
		"ed25519_keys": ed,
		"x25519_keys":  x,
		"queried_at":   s.Now().Unix(),
	}
	writeSignedResponse(w, s.Logger, response, serverPriv)
}

func decodeUserID(b58 string) (storage.UserID, *apierror.Error) {
	raw, err := xcrypto.DecodeBase58(b58)
	if err != nil || len(raw) != 16 {
		return storage.UserID{}, apierror.New(apierror.BadEnvelope)
	}
	var id storage.UserID
	copy(id[:], raw)
	return id, nil
}
