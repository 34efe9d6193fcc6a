// Package token implements the dual-token (access+refresh) lifecycle of
// spec §4.4: custom JWT-shaped tokens signed with the per-user server
// Ed25519 key derived from the bound client public key, and the 2/3-window
// rotation state machine including MITM-safe dual-signing.
package token

import (
	"crypto/ed25519"
	"encoding/json"
	"strings"
	"time"

	"github.com/arkaitz-dev/hashrand-sub000/internal/apierror"
	"github.com/arkaitz-dev/hashrand-sub000/internal/identity"
	"github.com/arkaitz-dev/hashrand-sub000/internal/xcrypto"
)

// Type distinguishes access from refresh tokens.
type Type string

const (
	TypeAccess  Type = "access"
	TypeRefresh Type = "refresh"
)

// Claims is the payload shape of both tokens (spec §4.4).
type Claims struct {
	Sub       string `json:"sub"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
	PubKeyHex string `json:"pub_key"`
	TokenType Type   `json:"token_type"`
	SessionID uint64 `json:"session_id,omitempty"`
}

// Token is the header.payload.signature triple, each Base64url, matching
// a JWT's on-wire shape without claiming standard JWT compliance.
type Token string

const wireHeader = "hashrand.v1"

// Sign builds a Token for claims using priv, the per-user server Ed25519
// key bound to claims.PubKeyHex.
func Sign(claims Claims, priv ed25519.PrivateKey) (Token, error) {
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return "", err
	}
	canonical, err := xcrypto.Canonical(decoded)
	if err != nil {
		return "", err
	}
	sig := xcrypto.Sign(priv, canonical)

	h := xcrypto.Base64URL([]byte(wireHeader))
	p := xcrypto.Base64URL(canonical)
	s := xcrypto.Base64URL(sig)
	return Token(h + "." + p + "." + s), nil
}

// Verify recomputes the per-user server key for the claimed (sub,
// pub_key) pair and checks the signature. Because the server key is
// derivable, verification needs only what's already in the payload.
func Verify(tok Token, keys identity.Keys) (Claims, *apierror.Error) {
	parts := strings.SplitN(string(tok), ".", 3)
	if len(parts) != 3 {
		return Claims{}, apierror.New(apierror.BadEnvelope)
	}
	if parts[0] != xcrypto.Base64URL([]byte(wireHeader)) {
		return Claims{}, apierror.New(apierror.BadEnvelope)
	}

	payload, err := xcrypto.DecodeBase64URL(parts[1])
	if err != nil {
		return Claims{}, apierror.New(apierror.BadEnvelope)
	}
	sig, err := xcrypto.DecodeBase64URL(parts[2])
	if err != nil {
		return Claims{}, apierror.New(apierror.BadEnvelope)
	}

	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return Claims{}, apierror.New(apierror.BadEnvelope)
	}

	userID, err := xcrypto.DecodeBase58(claims.Sub)
	if err != nil || len(userID) != 16 {
		return Claims{}, apierror.New(apierror.BadEnvelope)
	}
	var uid [16]byte
	copy(uid[:], userID)

	serverPriv := identity.DeriveServerEd25519(keys, uid, claims.PubKeyHex)
	serverPub := serverPriv.Public().(ed25519.PublicKey)

	if verr := xcrypto.Verify(serverPub, payload, sig); verr != nil {
		return Claims{}, apierror.New(apierror.InvalidSignature)
	}

	return claims, nil
}

// IsExpired reports whether claims.ExpiresAt has passed as of now.
func (c Claims) IsExpired(now time.Time) bool {
	return now.Unix() >= c.ExpiresAt
}
