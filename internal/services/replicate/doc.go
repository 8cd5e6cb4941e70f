// Package replicate is a raw-HTTP client for the Replicate predictions API:
// create a prediction, then poll it at a fixed interval until it reaches a
// terminal state.
package replicate
