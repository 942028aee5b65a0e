// Package tracing provides OpenTelemetry tracing integration.
//
// This package provides distributed tracing capabilities using OpenTelemetry.
//
// Key features:
//   - Automatic HTTP request tracing via middleware
//   - W3C Trace Context propagation from incoming requests
//   - Trace ID exposure in response headers (X-Trace-Id)
//   - Span attributes for HTTP method, path, and status code
//
// Example usage:
//
//	import "edgepulse/internal/observability/tracing"
//
//	func main() {
//	    handler := tracing.Middleware(mux)
//	    http.ListenAndServe(":8080", handler)
//	}
//
//	func processRequest(ctx context.Context) {
//	    ctx, span := tracing.GetTracer().Start(ctx, "process-request")
//	    defer span.End()
//	    // ... process request ...
//	}
package tracing
