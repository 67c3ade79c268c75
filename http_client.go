package main

import (
	"net/http"
	"time"
)

// newExternalHTTPClient builds the client shared by the Slack API and the
// portal fetcher. Every outbound call carries this bounded timeout; nothing
// is retried automatically.
func newExternalHTTPClient(timeoutSeconds int) *http.Client {
	timeout := defaultExternalHTTPTimeout
	if timeoutSeconds > 0 {
		timeout = time.Duration(timeoutSeconds) * time.Second
	}
	return &http.Client{Timeout: timeout}
}
