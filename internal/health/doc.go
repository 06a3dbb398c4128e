// Package health provides composable health check probes plus the HTTP
// handlers both listeners mount for liveness and readiness.
//
// Probes combine with [All] (AND), [Any] (OR), and [Fixed] (static).
// [CheckFunc] adapts a plain function into a [Probe]. The server's readiness
// probe, for example, ANDs the shutdown gate with an existence check on the
// public media root.
//
// [ShutdownGate] coordinates graceful shutdown: once closed, readiness
// probes fail immediately (via atomic.Bool) so load balancers stop sending
// playback traffic before in-flight streams are drained.
package health
