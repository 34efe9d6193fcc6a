package xcrypto

import "math/big"

// p is the field modulus 2^255 - 19 used by both Ed25519 and X25519.
var p255 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 255), big.NewInt(19))

// Ed25519PubToX25519 converts a client's published Ed25519 public key to
// its birationally-equivalent X25519 (Montgomery) public key, so the
// server can ECDH-seal the privkey context to a client that never
// separately publishes an X25519 key. u = (1+y)/(1-y) mod p, where y is
// the Edwards y-coordinate recovered from the standard little-endian
// compressed point encoding (top bit is the x sign, discarded here since
// only u is needed).
func Ed25519PubToX25519(edPub []byte) ([]byte, error) {
	if len(edPub) != 32 {
		return nil, errInvalidPointLen
	}

	y := make([]byte, 32)
	copy(y, edPub)
	y[31] &= 0x7f // clear the sign bit, keep only the y-coordinate

	// Decode little-endian.
	yInt := new(big.Int)
	for i := 31; i >= 0; i-- {
		yInt.Lsh(yInt, 8)
		yInt.Or(yInt, big.NewInt(int64(y[i])))
	}

	one := big.NewInt(1)
	numerator := new(big.Int).Add(one, yInt)
	numerator.Mod(numerator, p255)

	denominator := new(big.Int).Sub(one, yInt)
	denominator.Mod(denominator, p255)

	denomInv := new(big.Int).ModInverse(denominator, p255)
	if denomInv == nil {
		return nil, errInvalidPointLen
	}

	u := new(big.Int).Mul(numerator, denomInv)
	u.Mod(u, p255)

	out := make([]byte, 32)
	uBytes := u.Bytes() // big-endian
	for i := 0; i < len(uBytes) && i < 32; i++ {
		out[i] = uBytes[len(uBytes)-1-i] // to little-endian
	}
	return out, nil
}
