// Package cognitive calls the external translation and sentiment web
// services used to enrich employee feedback. Clients share one HTTP
// client with a fixed timeout, authenticate through a subscription-key
// header and turn service failures into typed errors the pipeline can
// log and survive.
package cognitive

import (
	"net/http"
	"time"
)

const externalHTTPTimeout = 30 * time.Second

// subscriptionKeyHeader carries the API key for both services.
const subscriptionKeyHeader = "Ocp-Apim-Subscription-Key"

// sharedHTTPClient is reused by every service client so the timeout and
// connection pooling apply uniformly.
var sharedHTTPClient = &http.Client{
	Timeout: externalHTTPTimeout,
}
