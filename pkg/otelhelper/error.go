package otelhelper

import (
	"github.com/dukex/autograph/pkg/apperr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SetError marks span as failed and tags it with the error kind.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	kind := attribute.String(ErrorKindKey, string(apperr.KindOf(err)))

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(kind)
	span.AddEvent("error_occurred", trace.WithAttributes(
		append(attrs, kind)...,
	))
}
