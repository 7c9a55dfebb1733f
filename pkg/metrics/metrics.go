// Package metrics keeps operational gauges and counters in an embedded
// time-series store. All functions are no-ops until InitMetrics succeeds.
package metrics

import (
	"path"
	"sync"
	"time"

	"github.com/nakabonne/tstorage"
	"github.com/pkg/errors"
)

const (
	MetricsSalesCount       = "pos_sales_count"
	MetricsSalesAmountCents = "pos_sales_amount_cents"
	MetricsFeatureActivated = "pos_feature_activated"
	MetricsKeyGenerated     = "pos_key_generated"
	MetricsLoginSuccess     = "pos_login_success"
	MetricsSystemCpuUse     = "system_cpuuse"
	MetricsSystemMemUse     = "system_memuse"
	MetricsProcessCpuUse    = "toughpos_cpuuse"
	MetricsProcessMemUse    = "toughpos_memuse"
)

// Point is one stored sample
type Point struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

var (
	mu      sync.RWMutex
	storage tstorage.Storage
	current = map[string]int64{}
)

// InitMetrics opens the store under <workdir>/data/metrics
func InitMetrics(workdir string) error {
	mu.Lock()
	defer mu.Unlock()
	if storage != nil {
		return nil
	}
	st, err := tstorage.NewStorage(
		tstorage.WithDataPath(path.Join(workdir, "data", "metrics")),
		tstorage.WithTimestampPrecision(tstorage.Seconds),
		tstorage.WithRetention(90*24*time.Hour),
	)
	if err != nil {
		return errors.Wrap(err, "open metrics storage")
	}
	storage = st
	return nil
}

func insert(name string, value int64) {
	if storage == nil {
		return
	}
	_ = storage.InsertRows([]tstorage.Row{{
		Metric:    name,
		DataPoint: tstorage.DataPoint{Timestamp: time.Now().Unix(), Value: float64(value)},
	}})
}

// SetGauge records the current value of a gauge
func SetGauge(name string, value int64) {
	mu.Lock()
	defer mu.Unlock()
	current[name] = value
	insert(name, value)
}

// Incr adds delta to a counter and records the new total
func Incr(name string, delta int64) {
	mu.Lock()
	defer mu.Unlock()
	current[name] += delta
	insert(name, current[name])
}

// GetValue last value recorded since process start
func GetValue(name string) int64 {
	mu.RLock()
	defer mu.RUnlock()
	return current[name]
}

// Query returns samples of name in [start, end)
func Query(name string, start, end time.Time) ([]Point, error) {
	mu.RLock()
	defer mu.RUnlock()
	if storage == nil {
		return nil, nil
	}
	points, err := storage.Select(name, nil, start.Unix(), end.Unix())
	if errors.Is(err, tstorage.ErrNoDataPoints) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "select metric %s", name)
	}
	result := make([]Point, 0, len(points))
	for _, p := range points {
		result = append(result, Point{Time: time.Unix(p.Timestamp, 0), Value: p.Value})
	}
	return result, nil
}

// Close flushes and closes the store
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if storage == nil {
		return nil
	}
	err := storage.Close()
	storage = nil
	current = map[string]int64{}
	return err
}
