package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// MetricsCollector aggregates list executions per collection
type MetricsCollector struct {
	metrics      map[string]*CollectionMetrics
	metricsMutex sync.RWMutex

	globalMetrics *GlobalMetrics
	globalMutex   sync.RWMutex

	retentionDuration time.Duration
	cleanupInterval   time.Duration
	now               func() time.Time
}

// CollectionMetrics holds the list statistics of one collection
type CollectionMetrics struct {
	Collection           string          `json:"collection"`
	TotalLists           int64           `json:"total_lists"`
	SuccessfulLists      int64           `json:"successful_lists"`
	FailedLists          int64           `json:"failed_lists"`
	TotalExecutionTimeNs int64           `json:"total_execution_time_ns"`
	MinExecutionTimeNs   int64           `json:"min_execution_time_ns"`
	MaxExecutionTimeNs   int64           `json:"max_execution_time_ns"`
	AvgExecutionTimeNs   int64           `json:"avg_execution_time_ns"`
	TotalRecords         int64           `json:"total_records"`
	LastListTime         time.Time       `json:"last_list_time"`
	LastError            string          `json:"last_error,omitempty"`
	LastErrorTime        time.Time       `json:"last_error_time,omitempty"`
	ListsByHour          map[int64]int64 `json:"lists_by_hour"`
}

// GlobalMetrics holds gateway-wide statistics
type GlobalMetrics struct {
	TotalLists           int64            `json:"total_lists"`
	SuccessfulLists      int64            `json:"successful_lists"`
	FailedLists          int64            `json:"failed_lists"`
	TotalExecutionTimeNs int64            `json:"total_execution_time_ns"`
	ListsByCollection    map[string]int64 `json:"lists_by_collection"`
	ListsByHour          map[int64]int64  `json:"lists_by_hour"`
	StartTime            time.Time        `json:"start_time"`
}

// ErrCollectionMetricsNotFound is returned for a collection never listed
var ErrCollectionMetricsNotFound = errors.New("collection metrics not found")

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(retention time.Duration) *MetricsCollector {
	return &MetricsCollector{
		metrics:           make(map[string]*CollectionMetrics),
		retentionDuration: retention,
		cleanupInterval:   time.Hour,
		now:               time.Now,
		globalMetrics: &GlobalMetrics{
			ListsByCollection: make(map[string]int64),
			ListsByHour:       make(map[int64]int64),
			StartTime:         time.Now(),
		},
	}
}

// RecordExecution records one list execution of collection
func (mc *MetricsCollector) RecordExecution(collection string, records int, duration time.Duration, err error) {
	now := mc.now()
	hour := now.Truncate(time.Hour).Unix()
	elapsed := duration.Nanoseconds()

	mc.metricsMutex.Lock()
	cm, exists := mc.metrics[collection]
	if !exists {
		cm = &CollectionMetrics{
			Collection:         collection,
			MinExecutionTimeNs: elapsed,
			MaxExecutionTimeNs: elapsed,
			ListsByHour:        make(map[int64]int64),
		}
		mc.metrics[collection] = cm
	}

	cm.TotalLists++
	cm.TotalExecutionTimeNs += elapsed
	cm.TotalRecords += int64(records)
	cm.LastListTime = now
	if err == nil {
		cm.SuccessfulLists++
	} else {
		cm.FailedLists++
		cm.LastError = err.Error()
		cm.LastErrorTime = now
	}
	if elapsed < cm.MinExecutionTimeNs {
		cm.MinExecutionTimeNs = elapsed
	}
	if elapsed > cm.MaxExecutionTimeNs {
		cm.MaxExecutionTimeNs = elapsed
	}
	cm.AvgExecutionTimeNs = cm.TotalExecutionTimeNs / cm.TotalLists
	cm.ListsByHour[hour]++
	mc.metricsMutex.Unlock()

	mc.globalMutex.Lock()
	mc.globalMetrics.TotalLists++
	mc.globalMetrics.TotalExecutionTimeNs += elapsed
	if err == nil {
		mc.globalMetrics.SuccessfulLists++
	} else {
		mc.globalMetrics.FailedLists++
	}
	mc.globalMetrics.ListsByCollection[collection]++
	mc.globalMetrics.ListsByHour[hour]++
	mc.globalMutex.Unlock()
}

// GetCollectionMetrics returns a copy of the metrics of a collection
func (mc *MetricsCollector) GetCollectionMetrics(collection string) (*CollectionMetrics, error) {
	mc.metricsMutex.RLock()
	defer mc.metricsMutex.RUnlock()

	cm, exists := mc.metrics[collection]
	if !exists {
		return nil, ErrCollectionMetricsNotFound
	}
	return cm.clone(), nil
}

// GetAllMetrics returns a copy of the metrics of every collection
func (mc *MetricsCollector) GetAllMetrics() map[string]*CollectionMetrics {
	mc.metricsMutex.RLock()
	defer mc.metricsMutex.RUnlock()

	result := make(map[string]*CollectionMetrics, len(mc.metrics))
	for name, cm := range mc.metrics {
		result[name] = cm.clone()
	}
	return result
}

// GetGlobalMetrics returns a copy of the gateway-wide metrics
func (mc *MetricsCollector) GetGlobalMetrics() *GlobalMetrics {
	mc.globalMutex.RLock()
	defer mc.globalMutex.RUnlock()

	global := *mc.globalMetrics
	global.ListsByCollection = make(map[string]int64, len(mc.globalMetrics.ListsByCollection))
	for k, v := range mc.globalMetrics.ListsByCollection {
		global.ListsByCollection[k] = v
	}
	global.ListsByHour = copyHours(mc.globalMetrics.ListsByHour)
	return &global
}

// GetMetricsSummary returns a summary of metrics
func (mc *MetricsCollector) GetMetricsSummary() map[string]interface{} {
	global := mc.GetGlobalMetrics()
	uptime := time.Since(global.StartTime)

	summary := map[string]interface{}{
		"uptime_seconds":        uptime.Seconds(),
		"total_lists":           global.TotalLists,
		"successful_lists":      global.SuccessfulLists,
		"failed_lists":          global.FailedLists,
		"success_rate":          0.0,
		"avg_execution_time_ms": 0.0,
		"active_collections":    len(global.ListsByCollection),
		"lists_by_collection":   global.ListsByCollection,
	}
	if global.TotalLists > 0 {
		summary["success_rate"] = float64(global.SuccessfulLists) / float64(global.TotalLists)
		summary["avg_execution_time_ms"] = (float64(global.TotalExecutionTimeNs) / float64(global.TotalLists)) / 1e6
	}
	return summary
}

// GetTopCollections returns the most listed collections, busiest first
func (mc *MetricsCollector) GetTopCollections(limit int) []string {
	mc.globalMutex.RLock()
	names := make([]string, 0, len(mc.globalMetrics.ListsByCollection))
	counts := make(map[string]int64, len(mc.globalMetrics.ListsByCollection))
	for name, count := range mc.globalMetrics.ListsByCollection {
		names = append(names, name)
		counts[name] = count
	}
	mc.globalMutex.RUnlock()

	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	if len(names) > limit {
		names = names[:limit]
	}
	return names
}

// CleanupOldMetrics drops hourly statistics older than the retention period
func (mc *MetricsCollector) CleanupOldMetrics() {
	cutoff := mc.now().Add(-mc.retentionDuration).Unix()

	mc.metricsMutex.Lock()
	for _, cm := range mc.metrics {
		for hour := range cm.ListsByHour {
			if hour < cutoff {
				delete(cm.ListsByHour, hour)
			}
		}
	}
	mc.metricsMutex.Unlock()

	mc.globalMutex.Lock()
	defer mc.globalMutex.Unlock()
	for hour := range mc.globalMetrics.ListsByHour {
		if hour < cutoff {
			delete(mc.globalMetrics.ListsByHour, hour)
		}
	}
}

// StartCleanupRoutine runs CleanupOldMetrics every interval until ctx is
// done. A non-positive interval means hourly.
func (mc *MetricsCollector) StartCleanupRoutine(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = mc.cleanupInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mc.CleanupOldMetrics()
		}
	}
}

// ExportMetrics exports metrics in a format suitable for external monitoring
func (mc *MetricsCollector) ExportMetrics() map[string]interface{} {
	return map[string]interface{}{
		"global":      mc.GetGlobalMetrics(),
		"collections": mc.GetAllMetrics(),
		"summary":     mc.GetMetricsSummary(),
	}
}

func (cm *CollectionMetrics) clone() *CollectionMetrics {
	c := *cm
	c.ListsByHour = copyHours(cm.ListsByHour)
	return &c
}

func copyHours(hours map[int64]int64) map[int64]int64 {
	c := make(map[int64]int64, len(hours))
	for k, v := range hours {
		c[k] = v
	}
	return c
}
