package monitor

import (
	"strconv"
	"time"

	"github.com/pond75jnu/svcmon/internal/store"
)

// Status is the three-level health view derived from check history.
type Status string

const (
	StatusGreen Status = "GREEN" // healthy
	StatusAmber Status = "AMBER" // stale or unknown
	StatusRed   Status = "RED"   // failing
)

// ResolveEndpoint derives the status of one endpoint from its latest check.
// Pure; callable on demand from any presentation layer.
//
// The cadence rule is checked before the HTTP outcome: a 200 that landed
// longer ago than the polling interval is not trustworthy and reads AMBER.
func ResolveEndpoint(latest *store.CheckRecord, pollIntervalSec int, now time.Time) Status {
	if latest == nil {
		return StatusAmber
	}
	if latest.IsNoSignal() {
		return StatusAmber
	}
	if now.After(latest.CheckedAt.Add(time.Duration(pollIntervalSec) * time.Second)) {
		return StatusAmber
	}
	if latest.StatusCode != nil &&
		*latest.StatusCode >= 200 && *latest.StatusCode < 300 &&
		latest.Error == nil {
		return StatusGreen
	}
	return StatusRed
}

// ResolveRollup folds child statuses by worst-of precedence RED > AMBER >
// GREEN. An empty child set is AMBER: a group with nothing under it is a
// configuration gap, not a healthy group.
func ResolveRollup(children []Status) Status {
	if len(children) == 0 {
		return StatusAmber
	}
	worst := StatusGreen
	for _, s := range children {
		switch s {
		case StatusRed:
			return StatusRed
		case StatusAmber:
			worst = StatusAmber
		}
	}
	return worst
}

// StatusReason renders a short human explanation for rollup caching.
func StatusReason(latest *store.CheckRecord, pollIntervalSec int, now time.Time) string {
	switch {
	case latest == nil:
		return "no check recorded"
	case latest.IsNoSignal():
		return "no signal within expected window"
	case now.After(latest.CheckedAt.Add(time.Duration(pollIntervalSec) * time.Second)):
		return "check cadence exceeded"
	case latest.Error != nil:
		return *latest.Error
	case latest.StatusCode != nil:
		return "http " + strconv.Itoa(*latest.StatusCode)
	default:
		return "unknown"
	}
}
