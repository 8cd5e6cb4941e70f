// Package providers decouples stage logic from concrete image-generation
// backends.
//
// A Provider executes abstract capabilities (generate.stylize, segment.mask,
// ...). The Registry owns one instance of every backend plus the parsed model
// manifest, picks a provider per call (explicit override, then job hint, then
// the manifest's capability entry, then the manifest default), merges the
// entry's endpoint/model/version into the call, and delegates. Swapping a
// backend or model is a manifest edit; no stage code changes.
//
// Registries are constructed explicitly and passed to the stage runners, so
// independent pipelines can run side by side with different manifests.
package providers
