package sharedsecret

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"time"

	"github.com/arkaitz-dev/hashrand-sub000/internal/apierror"
	"github.com/arkaitz-dev/hashrand-sub000/internal/xcrypto"
	"github.com/arkaitz-dev/hashrand-sub000/storage"
)

// Keys bundles the four server secrets that parameterize every operation
// in this package.
type Keys struct {
	ChecksumKey  []byte
	URLCipherKey []byte
	ContentKey   []byte
	DBIndexKey   []byte
}

// Payload is the plaintext sealed inside SharedSecret.EncryptedPayload.
// The OTP is only ever surfaced to the sender role (spec §4.6).
type Payload struct {
	Secret string `json:"secret"`
	OTP    string `json:"otp"`
}

// CreateRequest is the input to Create.
type CreateRequest struct {
	SenderUserID, ReceiverUserID [16]byte
	Secret                       string
	PendingReads                 uint32
	TTL                          time.Duration
}

// CreateResult carries the two URL tails the caller mails/returns.
type CreateResult struct {
	SenderURL, ReceiverURL string
}

func newOTP() (string, error) {
	var n uint32
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	n = (uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])) % 1_000_000_000
	return fmt.Sprintf("%09d", n), nil
}

// Create builds and persists a sender/receiver pair, returning the two
// Base58 URL tails.
func Create(store storage.Storage, keys Keys, req CreateRequest, now time.Time) (CreateResult, error) {
	ref, err := NewReferenceHash()
	if err != nil {
		return CreateResult{}, err
	}

	otp, err := newOTP()
	if err != nil {
		return CreateResult{}, err
	}

	payload, err := sealPayload(keys.ContentKey, ref, Payload{Secret: req.Secret, OTP: otp})
	if err != nil {
		return CreateResult{}, err
	}

	senderURL, err := Encode(keys.ChecksumKey, keys.URLCipherKey, ref, req.SenderUserID, RoleSender)
	if err != nil {
		return CreateResult{}, err
	}
	receiverURL, err := Encode(keys.ChecksumKey, keys.URLCipherKey, ref, req.ReceiverUserID, RoleReceiver)
	if err != nil {
		return CreateResult{}, err
	}

	expiresAt := now.Add(req.TTL).Unix()
	senderRow := storage.SharedSecret{
		DBIndex:          DBIndex(keys.DBIndexKey, ref, req.SenderUserID),
		EncryptedPayload: payload,
		ExpiresAt:        expiresAt,
	}
	receiverRow := storage.SharedSecret{
		DBIndex:          DBIndex(keys.DBIndexKey, ref, req.ReceiverUserID),
		EncryptedPayload: payload,
		ExpiresAt:        expiresAt,
	}
	tracking := storage.SharedSecretTracking{ReferenceHash: ref, PendingReads: req.PendingReads, ExpiresAt: expiresAt}

	if err := store.CreateSharedSecretPair(senderRow, receiverRow, tracking); err != nil {
		return CreateResult{}, err
	}

	return CreateResult{SenderURL: senderURL, ReceiverURL: receiverURL}, nil
}

// Access implements the three-layer validation of spec §4.6: checksum,
// caller-identity match, then store lookup. Both roles are gated on the
// same pending_reads counter, so once it reaches zero — whether from
// receiver-side exhaustion or a sender-initiated Delete — the pair is
// inaccessible to sender and receiver alike (spec §3). The receiver role
// additionally decrements the counter on success and never sees the OTP.
func Access(store storage.Storage, keys Keys, b58 string, callerUserID [16]byte, now time.Time) (Payload, error) {
	h, err := Decode(keys.ChecksumKey, keys.URLCipherKey, b58)
	if err != nil {
		return Payload{}, apierror.New(apierror.SharedSecretNotFound)
	}

	if h.UserID != callerUserID {
		return Payload{}, apierror.New(apierror.SharedSecretForbidden)
	}

	dbIndex := DBIndex(keys.DBIndexKey, h.ReferenceHash, h.UserID)
	row, err := store.GetSharedSecret(dbIndex, now)
	if err != nil {
		return Payload{}, apierror.New(apierror.SharedSecretNotFound)
	}

	if h.Role == RoleSender {
		tracking, err := store.GetSharedSecretTracking(h.ReferenceHash)
		if err != nil || tracking.PendingReads == 0 {
			return Payload{}, apierror.New(apierror.SharedSecretNotFound)
		}
	}

	payload, err := openPayload(keys.ContentKey, h.ReferenceHash, row.EncryptedPayload)
	if err != nil {
		return Payload{}, apierror.New(apierror.SharedSecretNotFound)
	}

	if h.Role == RoleReceiver {
		if err := store.DecrementPendingReads(h.ReferenceHash, now); err != nil {
			return Payload{}, apierror.New(apierror.SharedSecretNotFound)
		}
		payload.OTP = ""
	}

	return payload, nil
}

// Delete implements the sender-only deletion of spec §4.6: the same
// three-layer validation, but only RoleSender may proceed. It deletes only
// the sender's own row — recomputed from reference_hash and the caller's
// own user_id, never read from storage — and zeroes pending_reads, so no
// step here ever learns or stores the receiver's db_index (spec §4.6).
func Delete(store storage.Storage, keys Keys, b58 string, callerUserID [16]byte) error {
	h, err := Decode(keys.ChecksumKey, keys.URLCipherKey, b58)
	if err != nil {
		return apierror.New(apierror.SharedSecretNotFound)
	}
	if h.UserID != callerUserID {
		return apierror.New(apierror.SharedSecretForbidden)
	}
	if h.Role != RoleSender {
		return apierror.New(apierror.SharedSecretForbidden)
	}
	senderDBIndex := DBIndex(keys.DBIndexKey, h.ReferenceHash, callerUserID)
	return store.DeleteSharedSecretPair(h.ReferenceHash, senderDBIndex)
}

func sealPayload(contentKey []byte, ref [referenceLen]byte, p Payload) ([]byte, error) {
	raw, err := xcrypto.Canonical(map[string]interface{}{"secret": p.Secret, "otp": p.OTP})
	if err != nil {
		return nil, err
	}
	derived := xcrypto.KDF(contentKey, ref[:], 44)
	return xcrypto.SealAEAD(derived[12:44], derived[0:12], raw)
}

func openPayload(contentKey []byte, ref [referenceLen]byte, ciphertext []byte) (Payload, error) {
	derived := xcrypto.KDF(contentKey, ref[:], 44)
	raw, err := xcrypto.OpenAEAD(derived[12:44], derived[0:12], ciphertext)
	if err != nil {
		return Payload{}, err
	}
	var decoded struct {
		Secret string `json:"secret"`
		OTP    string `json:"otp"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Payload{}, err
	}
	return Payload{Secret: decoded.Secret, OTP: decoded.OTP}, nil
}
