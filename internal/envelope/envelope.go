// Package envelope implements the SignedRequest/SignedResponse wrapping
// of spec §4.5: every protected endpoint (everything but /api/version)
// exchanges a canonicalised, Ed25519-signed JSON payload.
package envelope

import (
	"crypto/ed25519"
	"encoding/json"

	"github.com/arkaitz-dev/hashrand-sub000/internal/apierror"
	"github.com/arkaitz-dev/hashrand-sub000/internal/xcrypto"
)

// Envelope is the wire shape of both SignedRequest and SignedResponse.
type Envelope struct {
	Payload   json.RawMessage `json:"payload"`
	Signature string          `json:"signature"`
}

// PubKeyOf extracts the "pub_key" field from a decoded payload, in hex.
// Returns "", false if absent or malformed.
func PubKeyOf(payload map[string]interface{}) (string, bool) {
	v, ok := payload["pub_key"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Verify checks the Ed25519 signature on env against pubHex, after
// recomputing the canonical serialisation of the decoded payload. Any
// mismatch is reported as apierror.InvalidSignature; a structurally
// broken envelope is apierror.BadEnvelope.
func Verify(env Envelope, pubHex string) (map[string]interface{}, *apierror.Error) {
	if len(env.Payload) == 0 || env.Signature == "" {
		return nil, apierror.New(apierror.BadEnvelope)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(env.Payload, &decoded); err != nil {
		return nil, apierror.New(apierror.BadEnvelope)
	}

	canonical, err := xcrypto.Canonical(decoded)
	if err != nil {
		return nil, apierror.New(apierror.BadEnvelope)
	}

	sig, err := xcrypto.DecodeHex(env.Signature)
	if err != nil {
		return nil, apierror.New(apierror.BadEnvelope)
	}

	pub, err := xcrypto.DecodeHex(pubHex)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return nil, apierror.New(apierror.BadEnvelope)
	}

	if verr := xcrypto.Verify(ed25519.PublicKey(pub), canonical, sig); verr != nil {
		return nil, apierror.New(apierror.InvalidSignature)
	}
	return decoded, nil
}

// Sign produces a SignedResponse envelope for payload, signed by priv.
func Sign(payload interface{}, priv ed25519.PrivateKey) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Envelope{}, err
	}

	canonical, err := xcrypto.Canonical(decoded)
	if err != nil {
		return Envelope{}, err
	}

	sig := xcrypto.Sign(priv, canonical)
	return Envelope{Payload: json.RawMessage(canonical), Signature: xcrypto.Hex(sig)}, nil
}

// DualSign implements the MITM-safe rotation signer of spec §4.4: the
// response carries the new server public key but is signed under the old
// one, so a man-in-the-middle that substitutes a different key cannot
// produce a valid signature.
func DualSign(payload map[string]interface{}, newServerPub ed25519.PublicKey, oldServerPriv ed25519.PrivateKey) (Envelope, error) {
	withNewPub := make(map[string]interface{}, len(payload)+1)
	for k, v := range payload {
		withNewPub[k] = v
	}
	withNewPub["server_pub_key"] = xcrypto.Hex(newServerPub)

	canonical, err := xcrypto.Canonical(withNewPub)
	if err != nil {
		return Envelope{}, err
	}

	sig := xcrypto.Sign(oldServerPriv, canonical)
	return Envelope{Payload: json.RawMessage(canonical), Signature: xcrypto.Hex(sig)}, nil
}
