package wamp

import "regexp"

// IDs are integers between (inclusive) 0 and 2^53 (9007199254740992)
type ID uint64

// URIs are dot-separated identifiers, where each component *should* only
// contain letters, numbers or underscores.
//
// See the documentation for specifics:
// https://github.com/wamp-proto/wamp-proto/blob/master/rfc/text/basic/bp_identifiers.md#uris-uris
type URI string

// URI check regular expressions
var (
	// loose URI check disallowing empty URI components
	looseURINonEmpty = regexp.MustCompile(`^([^\s\.#]+\.)*([^\s\.#]+)$`)
	// loose URI check disallowing empty URI components in all but the last
	looseURILastEmpty = regexp.MustCompile(`^([^\s\.#]+\.)*([^\s\.#]*)$`)
	// loose URI check allowing empty URI components
	looseURIEmpty = regexp.MustCompile(`^(([^\s\.#]+\.)|\.)*([^\s\.#]+)?$`)
	// strict URI check disallowing empty URI components
	strictURINonEmpty = regexp.MustCompile(`^([0-9a-z_]+\.)*([0-9a-z_]+)$`)
	// strict URI check disallowing empty URI components in all but the last
	strictURILastEmpty = regexp.MustCompile(`^([0-9a-z_]+\.)*([0-9a-z_]*)$`)
	// strict URI check allowing empty URI components
	strictURIEmpty = regexp.MustCompile(`^(([0-9a-z_]+\.)|\.)*([0-9a-z_]+)?$`)
)

// ValidURI returns true if the URI complies with formatting rules determined
// by the strict flag and match type.
func (u URI) ValidURI(strict bool, match string) bool {
	if strict {
		if match == MatchWildcard {
			return strictURIEmpty.MatchString(string(u))
		}
		if match == MatchPrefix {
			return strictURILastEmpty.MatchString(string(u))
		}
		return strictURINonEmpty.MatchString(string(u))
	}
	if match == MatchWildcard {
		return looseURIEmpty.MatchString(string(u))
	}
	if match == MatchPrefix {
		return looseURILastEmpty.MatchString(string(u))
	}
	return looseURINonEmpty.MatchString(string(u))
}
