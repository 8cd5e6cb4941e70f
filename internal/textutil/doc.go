// Package textutil provides small string helpers: filesystem-safe tokens for
// job and artifact names, and human-readable labels for stage types.
package textutil
