package detectors

import (
	"context"
	"fmt"
	"path"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/singura/singura-go/internal/models"
	"github.com/singura/singura-go/internal/stats"
)

// NameBatchOperation labels the batch-operation detector.
const NameBatchOperation = "batch_operation"

// BatchOperation flags bursts of same-typed events on similarly named
// resources, the footprint of a script iterating over a file set. Events
// are clustered temporally per user, then judged on resource-name
// similarity within each cluster.
type BatchOperation struct{}

func (BatchOperation) Name() string { return NameBatchOperation }

func (BatchOperation) Detect(ctx context.Context, batch Batch) (Outcome, error) {
	cfg := batch.Thresholds.Batch
	groups, users := groupByUser(batch.Events)

	now := time.Now().UTC()
	var out Outcome
	for _, userID := range users {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}
		var events []*models.Event
		for _, ev := range groups[userID] {
			if ev.EventType.Known() {
				events = append(events, ev)
			}
		}
		sortByTime(events)

		for _, cluster := range splitClusters(events, cfg.ClusterGapSeconds) {
			byType := make(map[models.EventType][]*models.Event)
			for _, ev := range cluster {
				byType[ev.EventType] = append(byType[ev.EventType], ev)
			}
			types := make([]models.EventType, 0, len(byType))
			for eventType := range byType {
				types = append(types, eventType)
			}
			sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

			for _, eventType := range types {
				group := byType[eventType]
				if len(group) < cfg.MinClusterSize {
					continue
				}
				out.Evaluated++

				similarity := nameSimilarity(group)
				if similarity < cfg.MinNameSimilarity {
					continue
				}

				span := group[len(group)-1].Timestamp.Sub(group[0].Timestamp).Seconds()
				confidence := batchConfidence(len(group), similarity, cfg.MinClusterSize, cfg.MinNameSimilarity)

				log.Debug().
					Str("userId", userID).
					Str("eventType", string(eventType)).
					Int("clusterSize", len(group)).
					Float64("nameSimilarity", similarity).
					Msg("batch operation detected")

				out.Patterns = append(out.Patterns, models.ActivityPattern{
					PatternID:   uuid.NewString(),
					PatternType: models.PatternBatchOperation,
					DetectedAt:  now,
					Confidence:  confidence,
					Metadata: models.PatternMetadata{
						UserID:       userID,
						UserEmail:    firstEmail(group),
						ResourceType: group[0].ResourceType,
						ActionType:   eventType,
						Timestamp:    group[len(group)-1].Timestamp,
					},
					Evidence: models.PatternEvidence{
						Description: fmt.Sprintf("%d %s operations within %.0fs on similarly named resources",
							len(group), eventType, span),
						DataPoints: map[string]interface{}{
							"clusterSize":        len(group),
							"nameSimilarity":     similarity,
							"clusterSpanSeconds": span,
						},
						SupportingEvents: eventIDs(group),
					},
				})
			}
		}
	}
	return out, nil
}

// splitClusters cuts chronologically sorted events into temporal clusters
// wherever the gap between consecutive events exceeds gapSeconds.
func splitClusters(events []*models.Event, gapSeconds int) [][]*models.Event {
	if len(events) == 0 {
		return nil
	}
	maxGap := time.Duration(gapSeconds) * time.Second
	var clusters [][]*models.Event
	start := 0
	for i := 1; i < len(events); i++ {
		if events[i].Timestamp.Sub(events[i-1].Timestamp) > maxGap {
			clusters = append(clusters, events[start:i])
			start = i
		}
	}
	return append(clusters, events[start:])
}

// nameSimilarity scores how alike the cluster's resource names are, as the
// mean similarity of chronologically adjacent pairs. Events without a
// resource name score zero against anything.
func nameSimilarity(events []*models.Event) float64 {
	if len(events) < 2 {
		return 0
	}
	var total float64
	for i := 1; i < len(events); i++ {
		total += pairSimilarity(events[i-1].ActionDetails.ResourceName, events[i].ActionDetails.ResourceName)
	}
	return total / float64(len(events)-1)
}

// pairSimilarity compares two resource names. Names that differ only in a
// numeric suffix (report_001, report_002) are treated as one naming pattern
// and score 1.0; otherwise the score is the shared prefix length relative
// to the longer name.
func pairSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	stemA, digitsA := splitNumericSuffix(stripExt(a))
	stemB, digitsB := splitNumericSuffix(stripExt(b))
	if stemA != "" && stemA == stemB && (digitsA || digitsB) {
		return 1.0
	}
	prefix := 0
	for prefix < len(a) && prefix < len(b) && a[prefix] == b[prefix] {
		prefix++
	}
	longer := len(a)
	if len(b) > longer {
		longer = len(b)
	}
	return float64(prefix) / float64(longer)
}

// stripExt removes a file extension when present.
func stripExt(name string) string {
	if ext := path.Ext(name); ext != "" {
		return name[:len(name)-len(ext)]
	}
	return name
}

// splitNumericSuffix removes trailing digits and reports whether any were
// present.
func splitNumericSuffix(name string) (string, bool) {
	i := len(name)
	for i > 0 && name[i-1] >= '0' && name[i-1] <= '9' {
		i--
	}
	return name[:i], i < len(name)
}

// batchConfidence grows from 50 at the minimum qualifying cluster toward
// 100 as size and similarity rise.
func batchConfidence(size int, similarity float64, minSize int, minSimilarity float64) float64 {
	simComponent := 30.0
	if minSimilarity < 1 {
		simComponent = 30 * (similarity - minSimilarity) / (1 - minSimilarity)
	}
	sizeComponent := float64(size-minSize) * 2
	if sizeComponent > 20 {
		sizeComponent = 20
	}
	return stats.Clamp(50+simComponent+sizeComponent, 0, 100)
}
