package canonical

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHash_KeyOrderIndependent(t *testing.T) {
	a := map[string]any{"b": 2, "a": 1, "nested": map[string]any{"y": "v", "x": []int{1, 2, 3}}}
	b := map[string]any{"nested": map[string]any{"x": []int{1, 2, 3}, "y": "v"}, "a": 1, "b": 2}

	ha, err := Hash(a)
	require.NoError(t, err)
	hb, err := Hash(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
	assert.Len(t, ha, 64)
}

func TestHash_KeyOrderIndependent_RawJSON(t *testing.T) {
	var a, b any
	require.NoError(t, json.Unmarshal([]byte(`{"k1":"v1","k2":{"inner":[true,null,1.5]}}`), &a))
	require.NoError(t, json.Unmarshal([]byte(`{"k2":{"inner":[true,null,1.5]},"k1":"v1"}`), &b))

	ha, err := Hash(a)
	require.NoError(t, err)
	hb, err := Hash(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
}

func TestHash_ArrayOrderSignificant(t *testing.T) {
	ha, err := Hash([]string{"x", "y"})
	require.NoError(t, err)
	hb, err := Hash([]string{"y", "x"})
	require.NoError(t, err)
	assert.NotEqual(t, ha, hb)
}

func TestHash_MutationSensitive(t *testing.T) {
	base := map[string]any{"id": "inc-1", "score": 72, "tags": []string{"latency"}}
	h0, err := Hash(base)
	require.NoError(t, err)

	mutations := []map[string]any{
		{"id": "inc-2", "score": 72, "tags": []string{"latency"}},
		{"id": "inc-1", "score": 73, "tags": []string{"latency"}},
		{"id": "inc-1", "score": 72, "tags": []string{"errors"}},
		{"id": "inc-1", "score": 72, "tags": []string{"latency"}, "extra": true},
	}
	for i, m := range mutations {
		h, err := Hash(m)
		require.NoError(t, err)
		assert.NotEqual(t, h0, h, "mutation %d should change the hash", i)
	}
}

func TestHash_StructVsMapEquivalence(t *testing.T) {
	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	hs, err := Hash(payload{Name: "metrics", Count: 3})
	require.NoError(t, err)
	hm, err := Hash(map[string]any{"count": 3, "name": "metrics"})
	require.NoError(t, err)
	assert.Equal(t, hs, hm)
}

func TestMarshalCanonical_SortsKeys(t *testing.T) {
	b, err := MarshalCanonical(map[string]any{"z": 1, "a": 2, "m": 3})
	require.NoError(t, err)
	assert.Equal(t, `{"a":2,"m":3,"z":1}`, string(b))
}

func TestHash_UnsupportedValue(t *testing.T) {
	_, err := Hash(func() {})
	assert.Error(t, err)
}

func TestMustHash_PanicsOnUnsupported(t *testing.T) {
	assert.Panics(t, func() { MustHash(make(chan int)) })
}
