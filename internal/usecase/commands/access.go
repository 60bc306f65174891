package commands

type CallerFacts struct {
	GlobalPermission int
	IsModerator      bool
	IsVip            bool
	IsBroadcaster    bool
}

// HasAccess evaluates policy against the caller, short-circuiting in order.
//
// The broadcaster check comes first on purpose: the channel owner passes every
// policy, including global tier minimums they do not hold.
func HasAccess(policy AccessPolicy, caller CallerFacts) bool {
	if caller.IsBroadcaster {
		return true
	}

	if policy.MinGlobal > 0 && caller.GlobalPermission < policy.MinGlobal {
		return false
	}

	if policy.Broadcaster && !caller.IsBroadcaster {
		return false
	}

	switch policy.Channel {
	case TierEveryone:
	case TierVIP:
		if !caller.IsVip && !caller.IsModerator {
			return false
		}
	case TierModerator:
		if !caller.IsModerator {
			return false
		}
	case TierBroadcaster:
		// solo el broadcaster, que ya salió arriba
		return false
	default:
		return false
	}

	return true
}
