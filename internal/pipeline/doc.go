// Package pipeline loads pipeline definitions, owns the per-job context, and
// sequences stage execution.
//
// A pipeline definition (<pipelines_dir>/<id>.json) lists stages in order plus
// the style profile and action set. Every stage type declares which job
// context slots it reads and writes; LoadConfig and Engine.Run check that each
// stage's inputs are produced by an earlier stage (or already present on the
// job) before anything executes, so a misordered pipeline fails at load time
// instead of halfway through a run.
//
// Engine.Run is strictly sequential and fail-fast: the first stage error is
// reported through the Emitter and returned together with the partial context.
// Nothing is rolled back; artifacts already on disk remain.
package pipeline
