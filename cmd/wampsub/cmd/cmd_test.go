package cmd

import (
	"testing"

	"github.com/gammazero/wampsub/transport/serialize"
	"github.com/gammazero/wampsub/wamp"
	"github.com/stretchr/testify/require"
)

func TestParseArg(t *testing.T) {
	v, err := parseArg("hello world")
	require.NoError(t, err)
	require.Equal(t, wamp.String("hello world"), v)

	v, err = parseArg("42")
	require.NoError(t, err)
	require.Equal(t, wamp.Int(42), v)

	v, err = parseArg("2.5")
	require.NoError(t, err)
	require.Equal(t, wamp.Float(2.5), v)

	v, err = parseArg(`{"unit":"C","limits":[1,true,null]}`)
	require.NoError(t, err)
	require.Equal(t, wamp.Map{
		"unit":   wamp.String("C"),
		"limits": wamp.Seq{wamp.Int(1), wamp.Bool(true), wamp.None{}},
	}, v)
}

func TestParseSerialization(t *testing.T) {
	for name, want := range map[string]serialize.Serialization{
		"json":    serialize.JSON,
		"MsgPack": serialize.MSGPACK,
		"cbor":    serialize.CBOR,
	} {
		ser, err := parseSerialization(name)
		require.NoError(t, err)
		require.Equal(t, want, ser)
	}
	_, err := parseSerialization("xml")
	require.Error(t, err)
}

func TestSetupLogger(t *testing.T) {
	defer func() { logLevel, debug = "info", false }()

	logLevel = "warn"
	logger, err := setupLogger()
	require.NoError(t, err)
	require.False(t, logger.Core().Enabled(-1))

	debug = true
	logger, err = setupLogger()
	require.NoError(t, err)
	require.True(t, logger.Core().Enabled(-1))

	debug = false
	logLevel = "loud"
	_, err = setupLogger()
	require.Error(t, err)
}
