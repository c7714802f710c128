//go:build !metrics

package treepath

import "github.com/dan-solli/treepath/pkg/metrics"

// defaultCollector returns the no-op collector. This file is only compiled
// when the 'metrics' build tag is NOT present.
func defaultCollector() metrics.Collector {
	return metrics.NewNoopCollector()
}
