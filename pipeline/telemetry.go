package pipeline

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "xdao.co/provchain/pipeline"

var (
	tracer = otel.Tracer(instrumentationName)

	signedCounter, _ = otel.Meter(instrumentationName).Int64Counter(
		"provchain.manifests.signed",
		metric.WithDescription("Manifests signed by pipeline transforms and sources."),
	)
	failedCounter, _ = otel.Meter(instrumentationName).Int64Counter(
		"provchain.transforms.failed",
		metric.WithDescription("Transform calls that returned an error."),
	)
)

func countResult(ctx context.Context, op string, err error) {
	attrs := metric.WithAttributes(attribute.String("provchain.op", op))
	if err != nil {
		failedCounter.Add(ctx, 1, attrs)
		return
	}
	signedCounter.Add(ctx, 1, attrs)
}
