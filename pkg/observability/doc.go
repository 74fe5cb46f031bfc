/*
Package observability exposes Prometheus metrics for the stop-on-call service.

Metrics implements lifecycle.Observer, so registering it on the coordinator is enough to
track the state gauge, which wake source won and how long the drain took. The HTTP adapter
records stop outcomes and health checks through the same value.

The collectors are served on their own listener (see NewServer) so the main router keeps
exactly its two routes.
*/
package observability
