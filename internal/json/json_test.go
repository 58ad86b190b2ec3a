package json

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalRoundTrip(t *testing.T) {
	data, err := Marshal(map[string]any{"title": "Dune", "pages": 412})
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, Unmarshal(data, &out))
	assert.Equal(t, "Dune", out["title"])
	assert.Equal(t, float64(412), out["pages"])
}

func TestUnmarshalUseNumber(t *testing.T) {
	var out map[string]any
	require.NoError(t, UnmarshalUseNumber([]byte(`{"id":9007199254740993}`), &out))
	n, ok := out["id"].(Number)
	require.True(t, ok)
	v, err := n.Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(9007199254740993), v)
}
