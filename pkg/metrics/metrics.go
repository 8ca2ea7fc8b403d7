// Package metrics keeps process gauges and counters in an embedded
// time-series store under the workdir, queryable from the admin API.
package metrics

import (
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nakabonne/tstorage"
)

var (
	storage  tstorage.Storage
	counters sync.Map
)

// InitMetrics opens the embedded time-series storage under workdir/data/metrics
func InitMetrics(workdir string) error {
	var err error
	storage, err = tstorage.NewStorage(
		tstorage.WithDataPath(filepath.Join(workdir, "data", "metrics")),
		tstorage.WithTimestampPrecision(tstorage.Seconds),
		tstorage.WithRetention(7*24*time.Hour),
	)
	return err
}

// SetGauge records one sample of a gauge metric at now
func SetGauge(name string, value int64) {
	if storage == nil {
		return
	}
	_ = storage.InsertRows([]tstorage.Row{
		{
			Metric:    name,
			DataPoint: tstorage.DataPoint{Timestamp: time.Now().Unix(), Value: float64(value)},
		},
	})
}

// Incr adds n to a counter and records the running total
func Incr(name string, n int64) {
	v, _ := counters.LoadOrStore(name, new(int64))
	total := atomic.AddInt64(v.(*int64), n)
	SetGauge(name, total)
}

// Select returns datapoints for a metric between start and end (unix seconds)
func Select(name string, start, end int64) ([]*tstorage.DataPoint, error) {
	if storage == nil {
		return nil, nil
	}
	points, err := storage.Select(name, nil, start, end)
	if err == tstorage.ErrNoDataPoints {
		return nil, nil
	}
	return points, err
}

// Close flushes the storage; call on shutdown
func Close() error {
	if storage == nil {
		return nil
	}
	return storage.Close()
}
