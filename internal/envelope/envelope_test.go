package envelope

import (
	"crypto/ed25519"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arkaitz-dev/hashrand-sub000/internal/apierror"
	"github.com/arkaitz-dev/hashrand-sub000/internal/xcrypto"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	payload := map[string]interface{}{
		"pub_key": xcrypto.Hex(pub),
		"action":  "issue",
		"nested":  map[string]interface{}{"b": 1, "a": 2},
	}

	env, err := Sign(payload, priv)
	require.NoError(t, err)

	decoded, aerr := Verify(env, xcrypto.Hex(pub))
	require.Nil(t, aerr)
	require.Equal(t, "issue", decoded["action"])

	gotPub, ok := PubKeyOf(decoded)
	require.True(t, ok)
	require.Equal(t, xcrypto.Hex(pub), gotPub)
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	env, err := Sign(map[string]interface{}{"action": "issue"}, priv)
	require.NoError(t, err)

	var tampered map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Payload, &tampered))
	tampered["action"] = "redeem"
	raw, err := xcrypto.Canonical(tampered)
	require.NoError(t, err)
	env.Payload = raw

	_, aerr := Verify(env, xcrypto.Hex(pub))
	require.NotNil(t, aerr)
	require.Equal(t, apierror.InvalidSignature, aerr.Kind)
}

func TestVerifyRejectsMalformedEnvelope(t *testing.T) {
	_, aerr := Verify(Envelope{}, "deadbeef")
	require.NotNil(t, aerr)
	require.Equal(t, apierror.BadEnvelope, aerr.Kind)
}

func TestDualSignVerifiesUnderOldKeyAndCarriesNewPub(t *testing.T) {
	oldPub, oldPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	newPub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	env, err := DualSign(map[string]interface{}{"action": "rotate"}, newPub, oldPriv)
	require.NoError(t, err)

	decoded, aerr := Verify(env, xcrypto.Hex(oldPub))
	require.Nil(t, aerr)
	require.Equal(t, xcrypto.Hex(newPub), decoded["server_pub_key"])
}
