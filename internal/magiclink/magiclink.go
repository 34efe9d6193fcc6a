// Package magiclink implements issuance and redemption of the magic-link
// proof-of-possession flow (spec §4.3): a mailed, one-time, Base58 token
// whose encrypted payload carries everything needed to complete login
// without the server ever storing the plaintext email.
package magiclink

import (
	"crypto/rand"
	"encoding/json"
	"time"

	"github.com/arkaitz-dev/hashrand-sub000/internal/apierror"
	"github.com/arkaitz-dev/hashrand-sub000/internal/identity"
	"github.com/arkaitz-dev/hashrand-sub000/internal/xcrypto"
	"github.com/arkaitz-dev/hashrand-sub000/storage"
)

// Keys bundles the two secrets that parameterize token sealing, plus the
// identity keys needed to derive user_id during issuance.
type Keys struct {
	Identity     identity.Keys
	ContentKey   []byte // MLINK_CONTENT_KEY
	TokenHashKey []byte // MLINK_TOKEN_HASH_KEY
}

// Payload is the plaintext sealed inside a MagicLink row (spec §4.3 step 4).
type Payload struct {
	UserID    [16]byte `json:"-"`
	ClientPub [32]byte `json:"-"`
	UIHost    string   `json:"ui_host"`
	EmailLang string   `json:"email_lang"`
	Next      string   `json:"next,omitempty"`
	IssuedAt  int64    `json:"issued_at"`
	ExpiresAt int64    `json:"expires_at"`
}

type wirePayload struct {
	UserID    string `json:"user_id"`
	ClientPub string `json:"client_pub"`
	UIHost    string `json:"ui_host"`
	EmailLang string `json:"email_lang"`
	Next      string `json:"next,omitempty"`
	IssuedAt  int64  `json:"issued_at"`
	ExpiresAt int64  `json:"expires_at"`
}

// IssueRequest is the input to Issue.
type IssueRequest struct {
	Email        string
	UIHost       string
	EmailLang    string
	Next         string
	ClientPubHex string
}

// IssueResult carries the mailed token and the constructed redirect link.
// The caller echoes Token back to the client as dev_magic_link only when
// running in a development environment (spec's supplemented echo).
type IssueResult struct {
	Token   string // Base58, mailed to the user
	LinkURL string
	UserID  [16]byte
}

// Issue builds and persists a MagicLink row per spec §4.3 steps 3-6.
func Issue(store storage.Storage, keys Keys, req IssueRequest, ttl time.Duration, now time.Time) (IssueResult, error) {
	if req.UIHost == "" {
		return IssueResult{}, apierror.New(apierror.MissingUIHost)
	}

	normalized := identity.Normalize(req.Email)
	userID := identity.DeriveUserID(keys.Identity, normalized)

	clientPubBytes, err := xcrypto.DecodeHex(req.ClientPubHex)
	if err != nil || len(clientPubBytes) != 32 {
		return IssueResult{}, apierror.New(apierror.BadEnvelope)
	}

	issuedAt := now.Unix()
	expiresAt := now.Add(ttl).Unix()

	wire := wirePayload{
		UserID:    xcrypto.Hex(userID[:]),
		ClientPub: req.ClientPubHex,
		UIHost:    req.UIHost,
		EmailLang: req.EmailLang,
		Next:      req.Next,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}
	payloadBytes, err := json.Marshal(wire)
	if err != nil {
		return IssueResult{}, err
	}

	token := make([]byte, 32)
	if _, err := rand.Read(token); err != nil {
		return IssueResult{}, err
	}

	encryptedPayload, tokenHash, err := seal(keys, token, payloadBytes)
	if err != nil {
		return IssueResult{}, err
	}

	if err := store.CreateMagicLink(storage.MagicLink{
		EncryptedTokenHash: tokenHash,
		EncryptedPayload:   encryptedPayload,
		ExpiresAt:          expiresAt,
	}); err != nil {
		return IssueResult{}, err
	}

	tokenB58 := xcrypto.Base58(token)
	return IssueResult{
		Token:   tokenB58,
		LinkURL: req.UIHost + "/?magiclink=" + tokenB58,
		UserID:  userID,
	}, nil
}

// RedeemResult carries everything the caller needs to establish a
// session after a successful redemption, plus the opaque token hash
// Confirm needs to mark the row consumed.
type RedeemResult struct {
	Payload   Payload
	tokenHash [32]byte
}

// Peek implements spec §4.3 steps 1-3: decode, fetch, and decrypt, without
// marking the row consumed. The caller must verify the redemption envelope
// against Payload.ClientPub and only then call Confirm — otherwise anyone
// holding the mailed token could burn a legitimate user's link without
// ever possessing the client's private key.
func Peek(store storage.Storage, keys Keys, tokenB58 string, now time.Time) (RedeemResult, error) {
	token, err := xcrypto.DecodeBase58(tokenB58)
	if err != nil || len(token) != 32 {
		return RedeemResult{}, apierror.New(apierror.MagicLinkInvalid)
	}

	tokenHash := tokenHashOf(keys, token)

	row, err := store.GetMagicLink(tokenHash, now)
	if err != nil {
		// storage.ErrNotFound, ErrConsumed, and ErrExpired are distinct
		// store-side errors but surface identically to the client
		// (spec §7: "these are separate error kinds but surface as the
		// same 400 ... to avoid oracles").
		return RedeemResult{}, apierror.New(apierror.MagicLinkInvalid)
	}

	plaintext, err := open(keys, token, row.EncryptedPayload)
	if err != nil {
		return RedeemResult{}, apierror.New(apierror.MagicLinkInvalid)
	}

	var wire wirePayload
	if err := json.Unmarshal(plaintext, &wire); err != nil {
		return RedeemResult{}, apierror.New(apierror.MagicLinkInvalid)
	}

	userIDBytes, err := xcrypto.DecodeHex(wire.UserID)
	if err != nil || len(userIDBytes) != 16 {
		return RedeemResult{}, apierror.New(apierror.MagicLinkInvalid)
	}
	clientPubBytes, err := xcrypto.DecodeHex(wire.ClientPub)
	if err != nil || len(clientPubBytes) != 32 {
		return RedeemResult{}, apierror.New(apierror.MagicLinkInvalid)
	}

	var p Payload
	copy(p.UserID[:], userIDBytes)
	copy(p.ClientPub[:], clientPubBytes)
	p.UIHost = wire.UIHost
	p.EmailLang = wire.EmailLang
	p.Next = wire.Next
	p.IssuedAt = wire.IssuedAt
	p.ExpiresAt = wire.ExpiresAt

	return RedeemResult{Payload: p, tokenHash: tokenHash}, nil
}

// Confirm marks the row consumed per spec §4.3 step 4. Call only after the
// caller has verified the redemption envelope against the Payload a prior
// Peek returned.
func Confirm(store storage.Storage, result RedeemResult, now time.Time) error {
	if _, err := store.ConsumeMagicLink(result.tokenHash, now); err != nil {
		return apierror.New(apierror.MagicLinkInvalid)
	}
	return nil
}

// seal implements spec §4.3 step 5: derive a 44-byte value from the
// token under MLINK_CONTENT_KEY, split into a 12-byte nonce and 32-byte
// cipher key, and AEAD-encrypt the payload. The token hash is a
// separate keyed derivation so the content key is never reused for
// lookup.
func seal(keys Keys, token, payload []byte) (ciphertext []byte, tokenHash [32]byte, err error) {
	derived44 := xcrypto.KDF(keys.ContentKey, token, 44)
	nonce, cipherKey := derived44[0:12], derived44[12:44]

	ciphertext, err = xcrypto.SealAEAD(cipherKey, nonce, payload)
	if err != nil {
		return nil, tokenHash, err
	}
	copy(tokenHash[:], tokenHashOf(keys, token)[:])
	return ciphertext, tokenHash, nil
}

func open(keys Keys, token, ciphertext []byte) ([]byte, error) {
	derived44 := xcrypto.KDF(keys.ContentKey, token, 44)
	nonce, cipherKey := derived44[0:12], derived44[12:44]
	return xcrypto.OpenAEAD(cipherKey, nonce, ciphertext)
}

func tokenHashOf(keys Keys, token []byte) [32]byte {
	sum := xcrypto.KDF(keys.TokenHashKey, token, 32)
	var out [32]byte
	copy(out[:], sum)
	return out
}
