package models

import (
	"time"
)

// ActivityTimeframe describes an organization's business hours. Hours are in
// the organization's IANA zone; EndHour is exclusive. An overnight window
// (StartHour > EndHour) wraps past midnight.
type ActivityTimeframe struct {
	StartHour  int            `json:"startHour"`
	EndHour    int            `json:"endHour"`
	DaysOfWeek []time.Weekday `json:"daysOfWeek"`
	Timezone   string         `json:"timezone"`
}

// DefaultBusinessHours is Monday to Friday, 09:00 to 17:00 UTC.
func DefaultBusinessHours() ActivityTimeframe {
	return ActivityTimeframe{
		StartHour:  9,
		EndHour:    17,
		DaysOfWeek: []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		Timezone:   "UTC",
	}
}

// IsZero reports whether no field of the timeframe has been set. Callers
// should substitute DefaultBusinessHours rather than evaluate a zero
// timeframe, which would classify every hour as off-hours.
func (tf ActivityTimeframe) IsZero() bool {
	return tf.StartHour == 0 && tf.EndHour == 0 && len(tf.DaysOfWeek) == 0 && tf.Timezone == ""
}

// Location resolves the IANA zone, falling back to UTC when the name is
// empty or unknown.
func (tf ActivityTimeframe) Location() *time.Location {
	if tf.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tf.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Contains reports whether t falls inside business hours, evaluated in the
// timeframe's zone with DST taken into account.
func (tf ActivityTimeframe) Contains(t time.Time) bool {
	local := t.In(tf.Location())
	dayOK := false
	for _, d := range tf.DaysOfWeek {
		if local.Weekday() == d {
			dayOK = true
			break
		}
	}
	if !dayOK {
		return false
	}
	h := local.Hour()
	if tf.StartHour <= tf.EndHour {
		return h >= tf.StartHour && h < tf.EndHour
	}
	// Overnight window, e.g. 22 to 6.
	return h >= tf.StartHour || h < tf.EndHour
}
