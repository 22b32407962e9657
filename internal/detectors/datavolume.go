package detectors

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/singura/singura-go/internal/models"
	"github.com/singura/singura-go/internal/stats"
)

// NameDataVolume labels the data-volume detector.
const NameDataVolume = "data_volume"

// ewmaAlpha weights recent baseline days; 0.3 smooths a week of history
// without letting one quiet day mask sustained exfiltration.
const ewmaAlpha = 0.3

// extensionSizes estimates download bytes when the platform omitted a file
// size, keyed by lowercased extension.
var extensionSizes = map[string]int64{
	".pdf":  200 * 1024,
	".doc":  150 * 1024,
	".docx": 150 * 1024,
	".xls":  250 * 1024,
	".xlsx": 250 * 1024,
	".ppt":  1024 * 1024,
	".pptx": 1024 * 1024,
	".csv":  500 * 1024,
	".txt":  10 * 1024,
	".json": 50 * 1024,
	".png":  500 * 1024,
	".jpg":  300 * 1024,
	".jpeg": 300 * 1024,
	".gif":  200 * 1024,
	".zip":  5 * 1024 * 1024,
	".gz":   2 * 1024 * 1024,
	".mp3":  5 * 1024 * 1024,
	".mp4":  50 * 1024 * 1024,
	".mov":  50 * 1024 * 1024,
}

// defaultFileSize covers unknown extensions and nameless resources.
const defaultFileSize = 100 * 1024

// DataVolume flags abnormal download totals. Per user, downloads are binned
// into calendar days in the organization's zone; the most recent active day
// is compared against an exponentially weighted baseline of the preceding
// days and against absolute byte and file-count ceilings.
type DataVolume struct{}

func (DataVolume) Name() string { return NameDataVolume }

func (DataVolume) Detect(ctx context.Context, batch Batch) (Outcome, error) {
	cfg := batch.Thresholds.DataVolume
	loc := batch.Hours.Location()
	groups, users := groupByUser(batch.Events)

	now := time.Now().UTC()
	var out Outcome
	for _, userID := range users {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}
		var downloads []*models.Event
		for _, ev := range groups[userID] {
			if ev.EventType == models.EventFileDownload {
				downloads = append(downloads, ev)
			}
		}
		if len(downloads) == 0 {
			continue
		}
		out.Evaluated++

		samples := make([]stats.TimedValue, 0, len(downloads))
		for _, ev := range downloads {
			samples = append(samples, stats.TimedValue{At: ev.Timestamp, Value: float64(fileSizeOf(ev))})
		}
		buckets := stats.BinDaily(samples, loc)
		today := buckets[len(buckets)-1]

		lookbackStart := today.Day.AddDate(0, 0, -cfg.MinBaselineDays)
		var priorTotals []float64
		for _, b := range buckets[:len(buckets)-1] {
			if !b.Day.Before(lookbackStart) && b.Day.Before(today.Day) {
				priorTotals = append(priorTotals, b.Total)
			}
		}

		var baseline stats.Baseline
		baselineOK := len(priorTotals) >= cfg.MinBaselineDays
		if baselineOK {
			baseline = stats.EWMABaseline(priorTotals, ewmaAlpha)
		}

		critical := today.Total >= float64(cfg.DailyCriticalBytes)
		overBaseline := baselineOK && baseline.Mean > 0 && today.Total > baseline.Mean*cfg.AbnormalMultiplier
		overCount := today.Count >= cfg.FileCountThreshold
		if !critical && !overBaseline && !overCount {
			continue
		}

		confidence := volumeConfidence(today.Total, float64(cfg.DailyWarnBytes), float64(cfg.DailyCriticalBytes))

		var todayEvents []*models.Event
		for _, ev := range downloads {
			if sameDay(ev.Timestamp, today.Day, loc) {
				todayEvents = append(todayEvents, ev)
			}
		}
		sortByTime(todayEvents)

		dataPoints := map[string]interface{}{
			"totalBytes":   int64(today.Total),
			"fileCount":    today.Count,
			"baselineDays": len(priorTotals),
		}
		if baselineOK {
			dataPoints["baselineMeanBytes"] = baseline.Mean
			dataPoints["zScore"] = baseline.ZScore(today.Total)
			if baseline.Mean > 0 {
				dataPoints["volumeMultiplier"] = today.Total / baseline.Mean
			}
		}

		log.Debug().
			Str("userId", userID).
			Int64("totalBytes", int64(today.Total)).
			Int("fileCount", today.Count).
			Bool("overBaseline", overBaseline).
			Msg("abnormal download volume detected")

		out.Patterns = append(out.Patterns, models.ActivityPattern{
			PatternID:   uuid.NewString(),
			PatternType: models.PatternFileDownload,
			DetectedAt:  now,
			Confidence:  confidence,
			Metadata: models.PatternMetadata{
				UserID:       userID,
				UserEmail:    firstEmail(todayEvents),
				ResourceType: models.ResourceFile,
				ActionType:   models.EventFileDownload,
				Timestamp:    todayEvents[len(todayEvents)-1].Timestamp,
			},
			Evidence: models.PatternEvidence{
				Description: fmt.Sprintf("%.1f MiB downloaded across %d files in one day",
					today.Total/(1024*1024), today.Count),
				DataPoints:       dataPoints,
				SupportingEvents: eventIDs(todayEvents),
			},
		})
	}
	return out, nil
}

// volumeConfidence maps the day's byte total onto confidence: 90 at the
// warn threshold rising to 95 at critical, above 95 past critical, and a
// gentler ramp below warn for triggers driven by baseline or file count.
func volumeConfidence(total, warn, critical float64) float64 {
	switch {
	case total >= critical:
		over := total/critical - 1
		if over > 1 {
			over = 1
		}
		return stats.Clamp(95+5*over, 0, 100)
	case total >= warn:
		return stats.Clamp(90+5*(total-warn)/(critical-warn), 0, 100)
	default:
		return stats.Clamp(60+30*total/warn, 0, 100)
	}
}

// fileSizeOf resolves an event's download size from platform metadata,
// falling back to the extension heuristic.
func fileSizeOf(ev *models.Event) int64 {
	if meta := ev.ActionDetails.AdditionalMetadata; meta != nil {
		for _, key := range []string{"fileSize", "file_size", "sizeBytes", "size_bytes", "size", "bytes"} {
			if size, ok := numericBytes(meta[key]); ok && size > 0 {
				return size
			}
		}
	}
	name := ev.ActionDetails.ResourceName
	if ext := strings.ToLower(path.Ext(name)); ext != "" {
		if size, ok := extensionSizes[ext]; ok {
			return size
		}
	}
	return defaultFileSize
}

func numericBytes(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	}
	return 0, false
}

func sameDay(t time.Time, day time.Time, loc *time.Location) bool {
	local := t.In(loc)
	return local.Year() == day.Year() && local.Month() == day.Month() && local.Day() == day.Day()
}
