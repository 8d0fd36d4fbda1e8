/*
Package api exposes the admin HTTP surface over the manager: health and
program stats, routing-information registration, local record export, app
record management, the metrics endpoint, and (behind the debug flag) the
request-factory and artifact test endpoints.

All bodies are JSON. Error kinds map onto the status-code contract:
400 malformed body, 404 unknown id, 409 duplicate id, 422 validation
failure, 500 everything else.
*/
package api
