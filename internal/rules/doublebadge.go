package rules

import (
	"fmt"
	"sort"
	"time"

	"github.com/sells-group/attendance-cli/internal/model"
)

// BadgeUse is one badge punch attributed to a resolved employee and the
// session it was grouped into.
type BadgeUse struct {
	BadgeID    string
	EmployeeID string
	SessionID  string
	Timestamp  time.Time
}

// DetectDoubleBadge runs the one global rule: the same badge used by two
// distinct employees within the window. It must observe the complete event
// set, so it cannot be evaluated per session, and attaches a flag to each
// involved session. Flags are symmetric: swapping the input order of the two
// employees yields the same pair of flags.
func DetectDoubleBadge(uses []BadgeUse, window time.Duration) []model.ExceptionFlag {
	sorted := make([]BadgeUse, len(uses))
	copy(sorted, uses)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].BadgeID != sorted[j].BadgeID {
			return sorted[i].BadgeID < sorted[j].BadgeID
		}
		if !sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].Timestamp.Before(sorted[j].Timestamp)
		}
		return sorted[i].EmployeeID < sorted[j].EmployeeID
	})

	type flagKey struct {
		sessionID string
		badgeID   string
		pair      string
	}
	seen := make(map[flagKey]bool)
	var flags []model.ExceptionFlag

	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			a, b := sorted[i], sorted[j]
			if a.BadgeID != b.BadgeID {
				break
			}
			gap := b.Timestamp.Sub(a.Timestamp)
			if gap > window {
				break
			}
			if a.EmployeeID == b.EmployeeID {
				continue
			}

			// Order employees lexicographically so both flags carry the
			// identical explanation regardless of input order.
			e1, e2 := a.EmployeeID, b.EmployeeID
			if e1 > e2 {
				e1, e2 = e2, e1
			}
			explanation := fmt.Sprintf(
				"badge %s used by employees %s and %s within %s",
				a.BadgeID, e1, e2, model.FormatDuration(gap),
			)
			pair := e1 + "/" + e2

			for _, use := range []BadgeUse{a, b} {
				key := flagKey{sessionID: use.SessionID, badgeID: a.BadgeID, pair: pair}
				if seen[key] {
					continue
				}
				seen[key] = true
				flags = append(flags, model.ExceptionFlag{
					SessionID:   use.SessionID,
					Code:        model.CodeDoubleBadgeUse,
					Severity:    model.SeverityCritical,
					Explanation: explanation,
				})
			}
		}
	}

	sort.Slice(flags, func(i, j int) bool {
		if flags[i].SessionID != flags[j].SessionID {
			return flags[i].SessionID < flags[j].SessionID
		}
		return flags[i].Explanation < flags[j].Explanation
	})
	return flags
}
