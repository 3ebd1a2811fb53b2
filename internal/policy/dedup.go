package policy

import "fmt"

// DedupSet tracks identity keys for matches that have already produced a
// notification. It lives for the process lifetime and is cleared only when a
// new consent window opens.
type DedupSet struct {
	seen map[string]bool
}

// NewDedupSet creates an empty DedupSet.
func NewDedupSet() *DedupSet {
	return &DedupSet{seen: make(map[string]bool)}
}

// Has reports whether the key was already marked.
func (d *DedupSet) Has(key string) bool {
	return d.seen[key]
}

// Mark records a key.
func (d *DedupSet) Mark(key string) {
	d.seen[key] = true
}

// Clear removes all entries.
func (d *DedupSet) Clear() {
	d.seen = make(map[string]bool)
}

// Len returns the number of tracked keys.
func (d *DedupSet) Len() int {
	return len(d.seen)
}

// MatchKey builds the primary dedup key for a match: the match ID when one
// is present, otherwise the canonical user-pair key. The second return value
// is false when no key can be built.
func MatchKey(matchID, user1ID, user2ID int64) (string, bool) {
	if matchID > 0 {
		return fmt.Sprintf("m:%d", matchID), true
	}
	return UserPairKey(user1ID, user2ID)
}

// UserPairKey builds an order-independent key for a pair of user IDs. The
// second return value is false when either ID is non-positive.
func UserPairKey(user1ID, user2ID int64) (string, bool) {
	if user1ID <= 0 || user2ID <= 0 {
		return "", false
	}
	lo, hi := user1ID, user2ID
	if lo > hi {
		lo, hi = hi, lo
	}
	return fmt.Sprintf("p:%d_%d", lo, hi), true
}
