/*
Package lifecycle coordinates the shutdown of a stop-on-call listener.

Three kinds of wake source may ask the service to stop: an OS signal (SIGINT/SIGTERM), the
caller's context being cancelled, and the internal Signal being fired by a stop trigger (an
authorized HTTP request or a remote Redis message). The Coordinator races them, and whichever
fires first moves the service through Running → Draining → Stopped exactly once.

# Signal

Signal is a one-shot broadcast event:

	sig := lifecycle.NewSignal()
	go func() { sig.Wait(); log.Println("stopping") }()
	sig.Fire() // true
	sig.Fire() // false, no-op

# Coordinator

	coord := lifecycle.NewCoordinator(srv, sig, lifecycle.WithGracePeriod(5*time.Second))
	if err := coord.Run(ctx, listener); err != nil {
		log.Fatal(err)
	}
*/
package lifecycle
