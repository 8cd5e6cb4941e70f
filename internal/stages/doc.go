// Package stages implements the seven pipeline stage runners: ingest,
// stylize, turnaround, actions, segment, spritesheet, and manifest.
//
// Runners read the job context, place files through storage, and reach
// generation backends only through the provider registry. Stages that issue
// several generation calls fan out with a small concurrency limit (2 for
// turnaround and actions, 3 for segment). Fan-out tasks never touch the job
// context; each returns its result and the stage merges them in a fixed order
// once every task has settled. The first task failure fails the stage: queued
// tasks are skipped, in-flight siblings run to completion, and their results
// are discarded.
package stages
