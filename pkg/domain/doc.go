/*
Package domain contains the core rules of a stop request, free of any transport.

Both the HTTP route and the Redis remote trigger turn their input into a StopRequest and
ask Authorize whether it may stop the service. An authorized request fires a Trigger,
which *lifecycle.Signal implements.
*/
package domain
