package wamp

// Consts for message options and option values.
const (
	// Message option keywords.
	OptAcknowledge = "acknowledge"
	OptDiscloseMe  = "disclose_me"
	OptExcludeMe   = "exclude_me"
	OptMatch       = "match"
	OptMessage     = "message"
	OptError       = "error"
	OptReason      = "reason"
	OptTopic       = "topic"
	OptPublisher   = "publisher"

	// Values for URI matching mode.
	MatchExact    = "exact"
	MatchPrefix   = "prefix"
	MatchWildcard = "wildcard"

	// Options for subscriber filtering.
	BlacklistKey = "exclude"
	WhitelistKey = "eligible"
)

// Roles and the pub/sub features they advertise in HELLO details.
const (
	RoleBroker     = "broker"
	RolePublisher  = "publisher"
	RoleSubscriber = "subscriber"

	FeaturePatternSub           = "pattern_based_subscription"
	FeaturePubExclusion         = "publisher_exclusion"
	FeaturePubIdent             = "publisher_identification"
	FeatureSubBlackWhiteListing = "subscriber_blackwhite_listing"
)
