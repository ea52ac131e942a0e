package wamp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAsInt64(t *testing.T) {
	for _, v := range []interface{}{int(36), int32(36), int64(36), uint(36),
		uint32(36), uint64(36), ID(36), float32(36), float64(36)} {
		i, ok := AsInt64(v)
		require.True(t, ok, "failed to convert %T", v)
		require.Equal(t, int64(36), i)
	}
	_, ok := AsInt64("36")
	require.False(t, ok, "string should not convert to int64")
	_, ok = AsInt64(nil)
	require.False(t, ok, "nil should not convert to int64")
}

func TestAsStringURI(t *testing.T) {
	s, ok := AsString([]byte("hello"))
	require.True(t, ok)
	require.Equal(t, "hello", s)

	s, ok = AsString(URI("com.myapp.topic1"))
	require.True(t, ok)
	require.Equal(t, "com.myapp.topic1", s)

	_, ok = AsString(42)
	require.False(t, ok)

	u, ok := AsURI("com.myapp.topic1")
	require.True(t, ok)
	require.Equal(t, URI("com.myapp.topic1"), u)

	_, ok = AsURI(true)
	require.False(t, ok)
}

func TestAsDict(t *testing.T) {
	d, ok := AsDict(map[string]interface{}{"a": 1})
	require.True(t, ok, "Failed to convert to Dict")
	require.Equal(t, 1, d["a"])

	d, ok = AsDict(1234)
	require.False(t, ok, "Should fail converting to Dict")
	require.Nil(t, d)
}
