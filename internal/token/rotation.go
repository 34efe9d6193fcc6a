package token

import (
	"crypto/ed25519"
	"time"

	"github.com/arkaitz-dev/hashrand-sub000/internal/envelope"
	"github.com/arkaitz-dev/hashrand-sub000/internal/identity"
	"github.com/arkaitz-dev/hashrand-sub000/internal/xcrypto"
)

// Period names the three windows of the 2/3 rotation state machine
// (spec §4.4).
type Period int

const (
	Period1of3 Period = iota // refresh only mints a new access token
	Period2of3               // refresh performs key rotation
	Period3of3               // refresh rejected, re-authentication required
)

// Classify returns which window age falls into for a refresh token with
// total lifetime refreshTTL. The 2/3 threshold is a tunable policy
// number (spec §9), not a cryptographic constant.
func Classify(age, refreshTTL time.Duration) Period {
	threshold := refreshTTL * 2 / 3
	switch {
	case age >= refreshTTL:
		return Period3of3
	case age >= threshold:
		return Period2of3
	default:
		return Period1of3
	}
}

// Pair is an issued access+refresh token pair.
type Pair struct {
	Access           Token
	Refresh          Token
	ExpiresAtAccess  int64
	ExpiresAtRefresh int64
}

// Issue mints a fresh access+refresh pair bound to clientPub, used on
// magic-link redemption (spec §4.3 step 8) and on PERIOD-1/3 refresh
// (same key; there the caller hands out only the new access token).
func Issue(keys identity.Keys, userIDB58, clientPubHex string, sessionID uint64, now time.Time, accessTTL, refreshTTL time.Duration) (Pair, ed25519.PrivateKey) {
	var uid [16]byte
	copy(uid[:], xcrypto.MustDecodeBase58(userIDB58))
	serverPriv := identity.DeriveServerEd25519(keys, uid, clientPubHex)

	accessExp := now.Add(accessTTL).Unix()
	refreshExp := now.Add(refreshTTL).Unix()

	access, _ := Sign(Claims{
		Sub: userIDB58, IssuedAt: now.Unix(), ExpiresAt: accessExp,
		PubKeyHex: clientPubHex, TokenType: TypeAccess,
	}, serverPriv)

	refresh, _ := Sign(Claims{
		Sub: userIDB58, IssuedAt: now.Unix(), ExpiresAt: refreshExp,
		PubKeyHex: clientPubHex, TokenType: TypeRefresh, SessionID: sessionID,
	}, serverPriv)

	return Pair{Access: access, Refresh: refresh, ExpiresAtAccess: accessExp, ExpiresAtRefresh: refreshExp}, serverPriv
}

// RotationResult is the outcome of a PERIOD-2/3 refresh: a fresh pair
// bound to the new client key, returned inside an envelope that is
// dual-signed per spec §4.4.
type RotationResult struct {
	Pair Pair
	Env  envelope.Envelope
}

// Rotate implements spec §4.4's sign_for_rotation: the new pair is bound
// to newClientPubHex, but the response envelope is signed under the OLD
// server key so a man-in-the-middle cannot substitute its own keypair.
func Rotate(keys identity.Keys, userIDB58, oldClientPubHex, newClientPubHex string, sessionID uint64, now time.Time, accessTTL, refreshTTL time.Duration, payload map[string]interface{}) (RotationResult, error) {
	pair, newServerPriv := Issue(keys, userIDB58, newClientPubHex, sessionID, now, accessTTL, refreshTTL)

	var uid [16]byte
	copy(uid[:], xcrypto.MustDecodeBase58(userIDB58))
	oldServerPriv := identity.DeriveServerEd25519(keys, uid, oldClientPubHex)

	newServerPub := newServerPriv.Public().(ed25519.PublicKey)
	env, err := envelope.DualSign(payload, newServerPub, oldServerPriv)
	if err != nil {
		return RotationResult{}, err
	}

	return RotationResult{Pair: pair, Env: env}, nil
}
