package server

import (
	"crypto/ed25519"
	"encoding/json"
	"net/http"

	"github.com/arkaitz-dev/hashrand-sub000/internal/apierror"
	"github.com/arkaitz-dev/hashrand-sub000/internal/envelope"
)

// writeError renders an *apierror.Error to the response body, the only
// place in this package allowed to do so (spec §7).
func writeError(w http.ResponseWriter, logger interface {
	Errorf(format string, args ...interface{})
}, aerr *apierror.Error) {
	body := struct {
		Error string `json:"error"`
	}{Error: aerr.Message}

	b, err := json.Marshal(body)
	if err != nil {
		logger.Errorf("marshaling error body for kind %s: %v", aerr.Kind, err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(aerr.Status)
	w.Write(b)
}

// writeJSON writes an unsigned JSON body, used only by /api/version.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

// writeSignedResponse signs payload with priv and writes the resulting
// SignedResponse envelope as the body (spec §4.5).
func writeSignedResponse(w http.ResponseWriter, logger interface {
	Errorf(format string, args ...interface{})
}, payload map[string]interface{}, priv ed25519.PrivateKey) {
	env, err := envelope.Sign(payload, priv)
	if err != nil {
		logger.Errorf("signing response: %v", err)
		writeError(w, logger, apierror.New(apierror.InternalSerialisation))
		return
	}
	writeJSON(w, http.StatusOK, env)
}

// writeSignedEnvelope writes an already-built envelope (the dual-signed
// rotation case of spec §4.4, which signs with the *old* key).
func writeSignedEnvelope(w http.ResponseWriter, env envelope.Envelope) {
	writeJSON(w, http.StatusOK, env)
}
