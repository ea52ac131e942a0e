package client

import "github.com/gammazero/wampsub/wamp"

const helloRoles = "roles"

// Features supported by this client.
var clientRoles = wamp.Dict{
	wamp.RolePublisher: wamp.Dict{
		"features": wamp.Dict{
			wamp.FeatureSubBlackWhiteListing: true,
			wamp.FeaturePubExclusion:         true,
		},
	},
	wamp.RoleSubscriber: wamp.Dict{
		"features": wamp.Dict{
			wamp.FeaturePatternSub: true,
			wamp.FeaturePubIdent:   true,
		},
	},
}

// helloDetails returns the details sent in HELLO.  The roles are added unless
// already supplied by the user.  The user's dict is not modified.
func helloDetails(user wamp.Dict) wamp.Dict {
	details := make(wamp.Dict, len(user)+1)
	for k, v := range user {
		details[k] = v
	}
	if _, ok := details[helloRoles]; !ok {
		details[helloRoles] = clientRoles
	}
	return details
}
