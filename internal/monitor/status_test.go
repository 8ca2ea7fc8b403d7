package monitor

import (
	"testing"
	"time"

	"github.com/pond75jnu/svcmon/internal/domain"
	"github.com/pond75jnu/svcmon/internal/store"
)

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func probeRecord(code int, checkedAt time.Time) *store.CheckRecord {
	return &store.CheckRecord{
		StatusCode: intPtr(code),
		LatencyMs:  intPtr(10),
		Source:     domain.CheckSourceProbe,
		CheckedAt:  checkedAt,
	}
}

func TestResolveEndpoint_NoCheckIsAmber(t *testing.T) {
	if got := ResolveEndpoint(nil, 300, time.Now().UTC()); got != StatusAmber {
		t.Fatalf("no check should resolve AMBER, got %s", got)
	}
}

func TestResolveEndpoint_FreshOKIsGreen(t *testing.T) {
	now := time.Now().UTC()
	rec := probeRecord(200, now.Add(-10*time.Second))
	if got := ResolveEndpoint(rec, 300, now); got != StatusGreen {
		t.Fatalf("fresh 200 should resolve GREEN, got %s", got)
	}
}

func TestResolveEndpoint_FreshFailureIsRed(t *testing.T) {
	now := time.Now().UTC()

	// Fresh 500 inside the cadence window
	interval := 300
	rec := probeRecord(500, now.Add(-time.Duration(float64(interval)*0.5)*time.Second))
	if got := ResolveEndpoint(rec, interval, now); got != StatusRed {
		t.Fatalf("fresh 500 should resolve RED, got %s", got)
	}

	// Transport error without a status code
	rec = &store.CheckRecord{
		Error:     strPtr("connection refused"),
		Source:    domain.CheckSourceProbe,
		CheckedAt: now.Add(-10 * time.Second),
	}
	if got := ResolveEndpoint(rec, interval, now); got != StatusRed {
		t.Fatalf("transport failure should resolve RED, got %s", got)
	}

	// 200 with an error annotation still reads RED
	rec = probeRecord(200, now.Add(-10*time.Second))
	rec.Error = strPtr("tls handshake failed: x509: certificate expired")
	if got := ResolveEndpoint(rec, interval, now); got != StatusRed {
		t.Fatalf("2xx with error should resolve RED, got %s", got)
	}
}

func TestResolveEndpoint_StaleCheckIsAmber(t *testing.T) {
	now := time.Now().UTC()
	interval := 300

	// A 200 older than the interval is stale even though it succeeded
	rec := probeRecord(200, now.Add(-time.Duration(float64(interval)*1.6)*time.Second))
	if got := ResolveEndpoint(rec, interval, now); got != StatusAmber {
		t.Fatalf("stale 200 should resolve AMBER, got %s", got)
	}

	// The cadence rule wins over the HTTP outcome for failures too
	rec = probeRecord(500, now.Add(-time.Duration(2*interval)*time.Second))
	if got := ResolveEndpoint(rec, interval, now); got != StatusAmber {
		t.Fatalf("stale 500 should resolve AMBER, got %s", got)
	}

	// Exactly at the boundary is still fresh
	rec = probeRecord(200, now.Add(-time.Duration(interval)*time.Second))
	if got := ResolveEndpoint(rec, interval, now); got != StatusGreen {
		t.Fatalf("check exactly at the interval boundary should resolve GREEN, got %s", got)
	}
}

func TestResolveEndpoint_NoSignalIsAmber(t *testing.T) {
	now := time.Now().UTC()
	rec := &store.CheckRecord{
		LatencyMs: intPtr(0),
		Error:     strPtr("no signal within expected window"),
		Source:    domain.CheckSourceSilence,
		CheckedAt: now,
	}
	if got := ResolveEndpoint(rec, 300, now); got != StatusAmber {
		t.Fatalf("no-signal sentinel should resolve AMBER, got %s", got)
	}
}

// A 30-second endpoint walks through all three states as its last check ages
func TestResolveEndpoint_ThirtySecondInterval(t *testing.T) {
	now := time.Now().UTC()
	interval := 30

	rec := probeRecord(200, now.Add(-5*time.Second))
	if got := ResolveEndpoint(rec, interval, now); got != StatusGreen {
		t.Fatalf("5s-old 200 on a 30s interval should be GREEN, got %s", got)
	}

	rec = probeRecord(503, now.Add(-5*time.Second))
	if got := ResolveEndpoint(rec, interval, now); got != StatusRed {
		t.Fatalf("5s-old 503 on a 30s interval should be RED, got %s", got)
	}

	rec = probeRecord(200, now.Add(-45*time.Second))
	if got := ResolveEndpoint(rec, interval, now); got != StatusAmber {
		t.Fatalf("45s-old 200 on a 30s interval should be AMBER, got %s", got)
	}
}

func TestResolveRollup(t *testing.T) {
	cases := []struct {
		name     string
		children []Status
		want     Status
	}{
		{"empty is amber", nil, StatusAmber},
		{"all green", []Status{StatusGreen, StatusGreen}, StatusGreen},
		{"amber dominates green", []Status{StatusGreen, StatusAmber, StatusGreen}, StatusAmber},
		{"red dominates all", []Status{StatusGreen, StatusAmber, StatusRed}, StatusRed},
		{"single red", []Status{StatusRed}, StatusRed},
	}
	for _, tc := range cases {
		if got := ResolveRollup(tc.children); got != tc.want {
			t.Errorf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}

func TestStatusReason(t *testing.T) {
	now := time.Now().UTC()

	if got := StatusReason(nil, 300, now); got != "no check recorded" {
		t.Fatalf("unexpected reason: %s", got)
	}

	rec := probeRecord(200, now.Add(-10*time.Second))
	if got := StatusReason(rec, 300, now); got != "http 200" {
		t.Fatalf("unexpected reason: %s", got)
	}

	rec = probeRecord(200, now.Add(-600*time.Second))
	if got := StatusReason(rec, 300, now); got != "check cadence exceeded" {
		t.Fatalf("unexpected reason: %s", got)
	}

	rec = probeRecord(500, now.Add(-10*time.Second))
	rec.Error = strPtr("connection refused")
	if got := StatusReason(rec, 300, now); got != "connection refused" {
		t.Fatalf("unexpected reason: %s", got)
	}
}
