// Package fal is a minimal client for the fal.ai queue API.
//
// Subscribe is the blocking wait primitive: it submits a request to an
// endpoint, polls the request status until it completes, and fetches the
// response payload. Each HTTP round trip honours the per-request timeout;
// overall waiting is bounded only by the caller's context.
package fal
