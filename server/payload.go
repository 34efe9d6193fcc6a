package server

import (
	"encoding/json"
	"time"

	"github.com/arkaitz-dev/hashrand-sub000/internal/mailer"
)

// decodeInto re-marshals a verified envelope payload into a typed
// struct, so handlers work with named fields instead of raw maps.
func decodeInto(m map[string]interface{}, v interface{}) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func mailerMessage(to, linkURL, uiHost string, ttl time.Duration) mailer.Message {
	return mailer.Message{
		To:        to,
		MagicLink: linkURL,
		UIHost:    uiHost,
		ExpiresIn: ttl.String(),
	}
}
