/*
Package stoponcall is a tiny HTTP service that shuts itself down when asked to.

It exposes two routes: GET /healthz, which always answers "ok" while the service is
running, and the stop route "/", which answers "Server stopping..." and starts a graceful
shutdown. The stop route accepts exactly one method (GET by default, or POST) and can be
guarded by a shared secret, passed either as the "secret" query parameter or the X-Secret
header. The query parameter wins when both are present.

Shutdown is driven by three independent sources: an authorized stop request, an OS
interrupt (SIGINT/SIGTERM) and cancellation of the context passed to Run. Whichever fires
first moves the service from running to draining; in-flight requests get a bounded grace
period, then the listener is closed and Run returns.

# Usage

	package main

	import (
		"context"
		"log"

		stoponcall "github.com/aretw0/stop-on-call"
		"github.com/aretw0/stop-on-call/pkg/config"
	)

	func main() {
		cfg, _ := config.FromEnv()

		svc := stoponcall.New(cfg)
		if err := svc.Run(context.Background()); err != nil {
			log.Fatal(err)
		}
	}

Optional integrations are enabled through configuration: a Prometheus listener
(STOP_ON_CALL_METRICS_ADDR) and a Redis pub/sub channel that stops every subscribed
instance at once (STOP_ON_CALL_REDIS_URL).
*/
package stoponcall
