package describe

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/drivescene/internal/describe"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
