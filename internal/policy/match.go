// Package policy implements the notification decision engines: the
// match-notification policy with its dedup set and consent window, and the
// count-increase policy with its persisted baseline.
package policy

import (
	"time"

	"matchpoller/internal/client"
	"matchpoller/internal/model"
)

// MatchDecision is the outcome of evaluating one match-check result.
type MatchDecision struct {
	// Notify is true when a match notification must fire.
	Notify bool
	// CloseWindow is true when the consent window must transition to
	// closed, regardless of whether a notification fired.
	CloseWindow bool
}

// MatchPolicy decides, per poll cycle, whether a match notification fires,
// is suppressed as a duplicate, or closes the consent grace window.
//
// An authoritative has_new_match from the backend always notifies (the
// backend dedups across polls at the match-identity level). The consent
// window path is a client-side allowance to catch the match that existed
// right when the user turned consent on; it fires at most once per window
// and is suppressed afterwards using the same identity keys, so it never
// double-fires with a later authoritative signal for the same match.
type MatchPolicy struct {
	dedup *DedupSet
}

// NewMatchPolicy creates a MatchPolicy with an empty dedup set.
func NewMatchPolicy() *MatchPolicy {
	return &MatchPolicy{dedup: NewDedupSet()}
}

// ResetWindow clears the dedup set. Called when a new consent window opens.
func (p *MatchPolicy) ResetWindow() {
	p.dedup.Clear()
}

// DedupLen returns the number of tracked dedup keys.
func (p *MatchPolicy) DedupLen() int {
	return p.dedup.Len()
}

// Evaluate applies the decision algorithm to one match-check result. It
// mutates the dedup set when a notification fires.
func (p *MatchPolicy) Evaluate(check client.MatchCheck, win model.ConsentWindow, now time.Time) MatchDecision {
	if !check.HasLatest {
		return MatchDecision{}
	}

	within := win.Open(now)

	shouldShow := check.HasNewMatch || (within && !win.Notified)
	if !shouldShow {
		return MatchDecision{}
	}

	matchKey, haveMatchKey := MatchKey(check.MatchID, check.User1ID, check.User2ID)
	pairKey, havePairKey := UserPairKey(check.User1ID, check.User2ID)

	if !check.HasNewMatch {
		already := (haveMatchKey && p.dedup.Has(matchKey)) ||
			(havePairKey && p.dedup.Has(pairKey))
		if already {
			return MatchDecision{CloseWindow: within}
		}
	}

	if haveMatchKey {
		p.dedup.Mark(matchKey)
	}
	if havePairKey {
		p.dedup.Mark(pairKey)
	}

	return MatchDecision{Notify: true, CloseWindow: within}
}
