/*
Package http exposes planning sessions over HTTP with chi.

	POST /sessions/{id}/plans        {"query": "..."} -> {"run_id", "index", "document"}
	GET  /sessions/{id}/plans        artifact list, without documents
	GET  /sessions/{id}/plans/{idx}  the document as text/html
	GET  /sessions/{id}/events       run, stage and tool events (SSE)
	GET  /healthz, /info, /graph, /metrics
*/
package http
