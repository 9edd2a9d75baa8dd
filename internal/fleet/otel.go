package fleet

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/usvlab/boatlink/internal/fleet"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
