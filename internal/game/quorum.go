package game

// continueFraction is the share of members that must be ready to continue
// when unanimity is not required. Minimum one member either way.
const continueFraction = 0.6

// SelectionQuorumMet reports whether every member has picked a character and
// toggled ready. Selection readiness is always unanimous; the configurable
// continue quorum does not apply to it.
func SelectionQuorumMet(members []*Member) bool {
	if len(members) == 0 {
		return false
	}
	for _, m := range members {
		if !m.Ready || m.CharacterID == 0 {
			return false
		}
	}
	return true
}

// ContinueQuorumMet reports whether enough members are ready to continue out
// of discussion. The member set is the denominator, so it must be re-evaluated
// whenever membership changes: a member leaving can retroactively satisfy a
// quorum that was previously unmet.
func ContinueQuorumMet(total, ready int, settings Settings) bool {
	if total == 0 || ready == 0 {
		return false
	}
	// Auto-continue always settles for the majority rule, even when the
	// session otherwise demands unanimity.
	if settings.RequireAllPlayers && !settings.AutoContinue {
		return ready >= total
	}
	threshold := int(float64(total) * continueFraction)
	if threshold < 1 {
		threshold = 1
	}
	return ready >= threshold
}
