package wamp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func welcomeDetails() Dict {
	return Dict{
		"roles": map[string]interface{}{
			"broker": map[string]interface{}{
				"features": map[string]interface{}{
					"publisher_exclusion": true,
					"not_flag":            123,
				},
			},
		},
		"authrole": "anonymous",
	}
}

func TestHasRoleFeature(t *testing.T) {
	details := welcomeDetails()
	require.True(t, HasRole(details, RoleBroker))
	require.False(t, HasRole(details, "dealer"))
	require.True(t, HasFeature(details, RoleBroker, FeaturePubExclusion))
	require.False(t, HasFeature(details, RoleBroker, FeaturePubIdent))
	require.False(t, HasFeature(details, RoleBroker, "not_flag"))

	// Same answers after normalizing.
	details = NormalizeDict(details)
	_, ok := details["roles"].(Dict)
	require.True(t, ok, "nested map not normalized to Dict")
	require.True(t, HasRole(details, RoleBroker))
	require.True(t, HasFeature(details, RoleBroker, FeaturePubExclusion))
}

func TestOptions(t *testing.T) {
	options := Dict{
		"acknowledge": true,
		"match":       "prefix",
		"flags": Dict{
			"flag_a":   true,
			"flag_b":   false,
			"not_flag": 123,
		},
	}

	require.True(t, OptionFlag(options, OptAcknowledge))
	require.False(t, OptionFlag(options, "not_here"))
	require.False(t, OptionFlag(options, OptMatch))
	require.Empty(t, OptionString(options, "not_here"))
	require.Equal(t, MatchPrefix, OptionString(options, OptMatch))

	fval, err := DictFlag(options, []string{"flags", "flag_a"})
	require.NoError(t, err, "Failed to get flag")
	require.True(t, fval, "Failed to get flag")

	fval, err = DictFlag(options, []string{"flags", "flag_b"})
	require.NoError(t, err, "Failed to get flag")
	require.False(t, fval, "Failed to get flag")

	_, err = DictFlag(options, []string{"flags", "flag_c"})
	require.Error(t, err, "Expected error for invalid flag path")
	_, err = DictFlag(options, []string{"no_flags", "flag_a"})
	require.Error(t, err, "Expected error for invalid flag path")
	_, err = DictFlag(options, []string{"flags", "not_flag"})
	require.Error(t, err, "Expected error for non-bool flag value")

	uri := URI("com.myapp.topic1")
	newDict := SetOption(nil, OptTopic, uri)
	require.Equal(t, uri, OptionURI(newDict, OptTopic), "failed to get uri")
}
