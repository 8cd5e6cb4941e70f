// Package main hosts the spriteforge CLI entrypoint and command graph.
//
// The Cobra-based command tree resolves configuration, builds the provider
// registry from the model manifest, and drives the pipeline engine for single
// jobs. It also exposes read-only views of routing, pipeline definitions, and
// preflight readiness, plus configuration scaffolding.
//
// Keep this package lean: behaviour lives in the internal packages and is
// surfaced here through commands and flags.
package main
