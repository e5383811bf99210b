package dispatcher

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// meter is read at New so a provider installed before the engagement
// starts is the one that receives the route metrics.
func meter() metric.Meter {
	return otel.Meter("github.com/hddf2/pilot/internal/dispatcher")
}
