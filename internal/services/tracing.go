package services

import "go.opentelemetry.io/otel"

// tracer resolves against whatever provider cmd installs; without one the
// spans are no-ops.
var tracer = otel.Tracer("ticket-portal/services")
