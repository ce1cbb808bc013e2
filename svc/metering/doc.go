// Package metering exposes the usage engine over HTTP.
//
// Routes:
//
//	POST /v1/teams/{teamID}/validate        {"action": "submit_response"}
//	POST /v1/teams/{teamID}/usage/{metric}  {"delta": 1}
//	GET  /v1/teams/{teamID}/usage
//	POST /v1/rollover
//	POST /v1/billing/paddle/webhook
//
// Every JSON response uses the envelope {"data": ..., "error": {...}}.
// A denied validation is a successful request: it answers 200 with
// admitted=false and the decision code. Storage faults answer 503.
package metering
