package detectors

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/singura/singura-go/internal/models"
	"github.com/singura/singura-go/internal/stats"
)

// NamePermissionEscalation labels the permission-escalation detector.
const NamePermissionEscalation = "permission_escalation"

// roleLadder orders permission levels from least to most privileged.
var roleLadder = map[string]int{
	"read":  0,
	"write": 1,
	"admin": 2,
	"share": 3,
	"owner": 4,
}

// roleAliases folds common platform spellings onto the canonical ladder.
var roleAliases = map[string]string{
	"reader":        "read",
	"viewer":        "read",
	"commenter":     "read",
	"writer":        "write",
	"editor":        "write",
	"contributor":   "write",
	"administrator": "admin",
	"full_control":  "owner",
}

// PermissionEscalation flags users who climb the permission ladder faster
// than ordinary role churn explains. Only permission_change events with a
// recognizable role are considered; unmappable roles are skipped rather
// than guessed.
type PermissionEscalation struct{}

func (PermissionEscalation) Name() string { return NamePermissionEscalation }

func (PermissionEscalation) Detect(ctx context.Context, batch Batch) (Outcome, error) {
	cfg := batch.Thresholds.Escalation
	groups, users := groupByUser(batch.Events)

	now := time.Now().UTC()
	var out Outcome
	for _, userID := range users {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}
		var changes []*models.Event
		for _, ev := range groups[userID] {
			if ev.EventType == models.EventPermissionChange {
				changes = append(changes, ev)
			}
		}
		if len(changes) < cfg.MinEvents {
			continue
		}
		out.Evaluated++

		sortByTime(changes)
		var mapped []*models.Event
		var levels []int
		for _, ev := range changes {
			if level, ok := roleLevel(ev); ok {
				mapped = append(mapped, ev)
				levels = append(levels, level)
			}
		}
		if len(mapped) < 2 {
			continue
		}

		escalations := 0
		maxJump := 0
		var escalationTimes []time.Time
		for i := 1; i < len(levels); i++ {
			jump := levels[i] - levels[i-1]
			if jump <= 0 {
				continue
			}
			escalations++
			if jump > maxJump {
				maxJump = jump
			}
			escalationTimes = append(escalationTimes, mapped[i].Timestamp)
		}
		if escalations == 0 {
			continue
		}

		spanDays := mapped[len(mapped)-1].Timestamp.Sub(mapped[0].Timestamp).Hours() / 24
		// Same-instant changes would make the rate infinite; floor at one hour.
		effectiveDays := math.Max(spanDays, 1.0/24)
		velocity := float64(escalations) / effectiveDays
		windowMax := maxInWindow(escalationTimes, 30*24*time.Hour)

		if velocity <= cfg.SuspiciousVelocity && maxJump < cfg.MaxLevelJump && windowMax <= cfg.MaxEscalationsPerMonth {
			continue
		}

		velocityComponent := math.Min(50, velocity/cfg.SuspiciousVelocity*10)
		confidence := stats.Clamp(float64(maxJump)*20+velocityComponent, 0, 100)

		log.Debug().
			Str("userId", userID).
			Int("escalations", escalations).
			Int("maxLevelJump", maxJump).
			Float64("escalationVelocity", velocity).
			Msg("permission escalation detected")

		out.Patterns = append(out.Patterns, models.ActivityPattern{
			PatternID:   uuid.NewString(),
			PatternType: models.PatternPermissionChange,
			DetectedAt:  now,
			Confidence:  confidence,
			Metadata: models.PatternMetadata{
				UserID:       userID,
				UserEmail:    firstEmail(mapped),
				ResourceType: mapped[0].ResourceType,
				ActionType:   models.EventPermissionChange,
				Timestamp:    escalationTimes[len(escalationTimes)-1],
			},
			Evidence: models.PatternEvidence{
				Description: fmt.Sprintf("%d privilege escalations over %.1f days (max jump %d levels)",
					escalations, spanDays, maxJump),
				DataPoints: map[string]interface{}{
					"escalationCount":     escalations,
					"maxLevelJump":        maxJump,
					"escalationVelocity":  velocity,
					"daysSpan":            spanDays,
					"escalationsIn30Days": windowMax,
				},
				SupportingEvents: eventIDs(mapped),
			},
		})
	}
	return out, nil
}

// roleLevel extracts the granted role from a permission-change event and
// maps it onto the ladder.
func roleLevel(ev *models.Event) (int, bool) {
	meta := ev.ActionDetails.AdditionalMetadata
	if meta == nil {
		return 0, false
	}
	for _, key := range []string{"newRole", "new_role", "role", "permissionLevel", "permission_level", "permission", "accessLevel", "access_level"} {
		raw, ok := meta[key]
		if !ok {
			continue
		}
		name, ok := raw.(string)
		if !ok {
			continue
		}
		name = strings.ToLower(strings.TrimSpace(name))
		if alias, ok := roleAliases[name]; ok {
			name = alias
		}
		if level, ok := roleLadder[name]; ok {
			return level, true
		}
	}
	return 0, false
}

// maxInWindow returns the largest number of timestamps falling inside any
// sliding window of the given width. Input must be sorted ascending.
func maxInWindow(times []time.Time, window time.Duration) int {
	best := 0
	lo := 0
	for hi := range times {
		for times[hi].Sub(times[lo]) > window {
			lo++
		}
		if n := hi - lo + 1; n > best {
			best = n
		}
	}
	return best
}
