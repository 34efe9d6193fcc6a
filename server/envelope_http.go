package server

import (
	"encoding/json"
	"net/http"

	"github.com/arkaitz-dev/hashrand-sub000/internal/apierror"
	"github.com/arkaitz-dev/hashrand-sub000/internal/envelope"
	"github.com/arkaitz-dev/hashrand-sub000/internal/token"
)

// decodeEnvelopeBody reads a POST body as a SignedRequest (spec §4.5).
func decodeEnvelopeBody(r *http.Request) (envelope.Envelope, *apierror.Error) {
	var env envelope.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		return envelope.Envelope{}, apierror.New(apierror.BadEnvelope)
	}
	return env, nil
}

// decodeEnvelopeQuery reassembles a SignedRequest from a GET's query
// string: every parameter but "signature" becomes the payload object
// (spec §4.5's "?<original params...>&signature=<hex>" transport).
func decodeEnvelopeQuery(r *http.Request) (envelope.Envelope, *apierror.Error) {
	values := r.URL.Query()
	sig := values.Get("signature")
	if sig == "" {
		return envelope.Envelope{}, apierror.New(apierror.BadEnvelope)
	}
	values.Del("signature")

	payload := make(map[string]interface{}, len(values))
	for k, vs := range values {
		if len(vs) == 0 {
			continue
		}
		payload[k] = vs[0]
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return envelope.Envelope{}, apierror.New(apierror.BadEnvelope)
	}
	return envelope.Envelope{Payload: raw, Signature: sig}, nil
}

// resolvePubKey implements spec §4.5 step 2: the claimant's public key
// comes from the payload's "pub_key" field (unauthenticated endpoints),
// from claims.PubKeyHex (authenticated endpoints), or both — in which
// case they must agree, or the request is a security violation.
func resolvePubKey(payload map[string]interface{}, claims *token.Claims) (string, *apierror.Error) {
	payloadPub, fromPayload := envelope.PubKeyOf(payload)

	switch {
	case fromPayload && claims != nil:
		if payloadPub != claims.PubKeyHex {
			return "", apierror.New(apierror.SimultaneousIdentityTokens)
		}
		return payloadPub, nil
	case fromPayload:
		return payloadPub, nil
	case claims != nil:
		return claims.PubKeyHex, nil
	default:
		return "", apierror.New(apierror.BadEnvelope)
	}
}

// verifyEnvelopeBody decodes and verifies a POST SignedRequest, resolving
// the signer's public key per resolvePubKey.
func verifyEnvelopeBody(r *http.Request, claims *token.Claims) (map[string]interface{}, *apierror.Error) {
	env, aerr := decodeEnvelopeBody(r)
	if aerr != nil {
		return nil, aerr
	}
	return verifyEnvelope(env, claims)
}

// verifyEnvelopeQuery decodes and verifies a GET SignedRequest carried in
// the query string.
func verifyEnvelopeQuery(r *http.Request, claims *token.Claims) (map[string]interface{}, *apierror.Error) {
	env, aerr := decodeEnvelopeQuery(r)
	if aerr != nil {
		return nil, aerr
	}
	return verifyEnvelope(env, claims)
}

func verifyEnvelope(env envelope.Envelope, claims *token.Claims) (map[string]interface{}, *apierror.Error) {
	var probe map[string]interface{}
	if err := json.Unmarshal(env.Payload, &probe); err != nil {
		return nil, apierror.New(apierror.BadEnvelope)
	}

	pubHex, aerr := resolvePubKey(probe, claims)
	if aerr != nil {
		return nil, aerr
	}

	return envelope.Verify(env, pubHex)
}
