package wamp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// URI components (the parts between two .s, the head part up to the first .,
// the tail part after the last .) MUST NOT contain a ., # or whitespace
// characters and MUST NOT be empty (zero-length strings).
func TestValidURI(t *testing.T) {
	checks := []struct {
		uri    URI
		strict bool
		match  string
		valid  bool
	}{
		{"com.myapp.topic1", true, "", true},
		{"test.11_22_33.v88.something", true, "", true},
		{"somewhere", true, "", true},
		{".is.not.good", true, "", false},
		{"this#is_not.allowed", true, "", false},
		{"Mixed.cAsE.URI", true, "", false},
		{"com.myapp.", true, MatchPrefix, true},
		{"this..test", true, MatchPrefix, false},
		{"com..topic1", true, MatchWildcard, true},
		{"...", true, MatchWildcard, true},
		{"this.one has.whitespace", true, MatchWildcard, false},

		{"Com.MyApp.Topic-1", false, "", true},
		{"com..topic1", false, "", false},
		{"this.one has.whitespace", false, "", false},
		{"this.is.H-E-L-L-O_123.", false, MatchPrefix, true},
		{".somewhere", false, MatchPrefix, false},
		{"This.Is..T-E-S-T", false, MatchWildcard, true},
		{"this#is_not.allowed", false, MatchWildcard, false},
	}
	for _, c := range checks {
		require.Equal(t, c.valid, c.uri.ValidURI(c.strict, c.match),
			"uri=%q strict=%v match=%q", c.uri, c.strict, c.match)
	}
}
