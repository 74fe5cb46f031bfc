package domain

import "crypto/subtle"

// Trigger fires the one-shot stop event. Fire reports whether this call was the one that fired it.
type Trigger interface {
	Fire() bool
}

// StopRequest is the candidate secret carried by one stop request.
type StopRequest struct {
	Secret  string
	Present bool
}

// NewStopRequest wraps a candidate secret that is known to be present.
func NewStopRequest(secret string) StopRequest {
	return StopRequest{Secret: secret, Present: true}
}

// Authorize reports whether req may stop the service. An empty secret authorizes everything;
// otherwise the candidate must be present and match byte for byte.
func Authorize(req StopRequest, secret string) bool {
	if secret == "" {
		return true
	}
	if !req.Present {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(req.Secret), []byte(secret)) == 1
}
