package xcrypto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonicalSortsKeysAtEveryDepth(t *testing.T) {
	in := map[string]interface{}{
		"b": 1,
		"a": map[string]interface{}{
			"z": 1,
			"y": 2,
		},
	}
	out, err := Canonical(in)
	require.NoError(t, err)
	require.Equal(t, `{"a":{"y":2,"z":1},"b":1}`, string(out))
}

func TestCanonicalIsIdempotent(t *testing.T) {
	in := map[string]interface{}{"z": []interface{}{3, 1, 2}, "a": "hi"}
	first, err := Canonical(in)
	require.NoError(t, err)

	var parsed interface{}
	require.NoError(t, json.Unmarshal(first, &parsed))

	second, err := Canonical(parsed)
	require.NoError(t, err)
	require.Equal(t, string(first), string(second))
}

func TestCanonicalMutationBreaksSignature(t *testing.T) {
	a, err := Canonical(map[string]interface{}{"amount": 100})
	require.NoError(t, err)
	b, err := Canonical(map[string]interface{}{"amount": 101})
	require.NoError(t, err)
	require.NotEqual(t, string(a), string(b))
}
