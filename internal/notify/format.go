package notify

import (
	"fmt"
	"strings"

	"matchpoller/internal/client"
)

// FormatMatchFound formats the match-found notification body.
func FormatMatchFound(check client.MatchCheck) string {
	var b strings.Builder
	b.WriteString("New match found nearby!")
	if check.DistanceM > 0 {
		fmt.Fprintf(&b, "\nDistance: %.0f m", check.DistanceM)
	}
	if check.MatchScore > 0 {
		fmt.Fprintf(&b, "\nMatch score: %d", check.MatchScore)
	}
	return b.String()
}

// FormatCountIncrease formats the count-increase notification body.
func FormatCountIncrease(previous, newCount int) string {
	return fmt.Sprintf("More people to match nearby: %d -> %d", previous, newCount)
}

// FormatServiceActive formats the service-active notification body.
func FormatServiceActive() string {
	return "Background matching is active. Looking for matches near you."
}
