package monitor

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pond75jnu/svcmon/internal/domain"
	"github.com/pond75jnu/svcmon/internal/store"
	"github.com/pond75jnu/svcmon/pkg/common"
)

const headersCap = 4000

// Prober performs single HTTP GET checks. It holds no state beyond the shared
// transport and never writes to the store; results flow back to the caller.
type Prober struct {
	timeout time.Duration
	client  *http.Client
}

func NewProber(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: -1,
		}).DialContext,
		DisableKeepAlives:     true,
		MaxIdleConns:          0,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
	}
	return &Prober{
		timeout: timeout,
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
	}
}

// Probe runs one GET against the endpoint. It always returns a usable record:
// transport failures, timeouts and even panics inside the request path come
// back as error results, never as a propagated failure, so one bad endpoint
// cannot abort its batch. CheckedAt is the dispatch time in UTC.
func (p *Prober) Probe(ctx context.Context, ep store.EndpointProbe) (rec store.CheckRecord) {
	start := time.Now()
	rec = store.CheckRecord{
		EndpointID: ep.EndpointID,
		Source:     domain.CheckSourceProbe,
		CheckedAt:  start.UTC(),
		TraceID:    common.UUID(),
	}

	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("probe panic: %v", r)
			rec.Error = &msg
			zap.L().Error("probe panic recovered",
				zap.String("url", ep.URL), zap.Any("panic", r))
		}
	}()

	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, ep.URL, nil)
	if err != nil {
		msg := "invalid url: " + err.Error()
		rec.Error = &msg
		return rec
	}
	req.Header.Set("User-Agent", "svcmon/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		msg := classifyProbeError(err)
		rec.Error = &msg
		zap.L().Warn("probe failed",
			zap.String("url", ep.URL),
			zap.String("site", ep.SiteName),
			zap.String("error", msg))
		return rec
	}
	defer resp.Body.Close()

	// Latency covers request start to body received
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	latency := int(time.Since(start).Milliseconds())

	code := resp.StatusCode
	rec.StatusCode = &code
	rec.LatencyMs = &latency
	rec.Headers = serializeHeaders(resp.Header)

	zap.L().Info("probe completed",
		zap.String("url", ep.URL),
		zap.Int("status", code),
		zap.Int("latency_ms", latency))
	return rec
}

// classifyProbeError maps transport failures to advisory descriptions.
// The strings are for operators, not an enumerated contract.
func classifyProbeError(err error) string {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "request timed out"
	}
	s := err.Error()
	switch {
	case strings.Contains(s, "connection refused"):
		return "connection refused"
	case strings.Contains(s, "no such host"):
		return "dns lookup failed"
	case strings.Contains(s, "tls:") || strings.Contains(s, "x509:"):
		return "tls handshake failed: " + s
	case strings.Contains(s, "context deadline exceeded"):
		return "request timed out"
	default:
		return "connection error: " + s
	}
}

// serializeHeaders renders response headers sorted by name and caps the
// result, preserving the oldest (leading) part.
func serializeHeaders(h http.Header) string {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(strings.Join(h[name], ", "))
		b.WriteString("\n")
		if b.Len() > headersCap {
			break
		}
	}
	return common.TruncateString(b.String(), headersCap)
}
