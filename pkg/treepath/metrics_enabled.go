//go:build metrics

package treepath

import "github.com/dan-solli/treepath/pkg/metrics"

// defaultCollector returns a Prometheus-backed collector when built with
// -tags metrics.
func defaultCollector() metrics.Collector {
	return metrics.NewCollector()
}
