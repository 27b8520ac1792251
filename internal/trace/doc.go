// Package trace is the structured logging layer of the elang toolchain.
//
// Enable tracing via command-line flags or the [trace] table of elang.toml:
//
//	elang run --trace=- --trace-level=detail ./examples
//
// Tracers:
//
//   - Nop: used when tracing is off
//   - StreamTracer: buffered write to a file or stderr (text or NDJSON)
//   - RingTracer: the last N events in memory, dumped when a build fails
//   - MultiTracer: fan-out to several tracers
//
// Levels select which scopes are emitted: phase keeps driver and pass spans,
// detail adds per-module spans (Context.Load, Use), debug adds individual
// builder calls. Errors and heartbeats are emitted at every level except off.
//
// Tracers and the current parent span travel through context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopePass, "build", trace.SpanFrom(ctx))
//	defer span.End("")
//	ctx = trace.WithSpan(ctx, span)
package trace
