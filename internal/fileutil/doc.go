// Package fileutil holds small filesystem helpers shared by the stage runners:
// verified copies for ingested uploads and atomic writes for generated artifacts.
package fileutil
