// Package storage maps job identifiers and relative artifact paths onto the
// job-scoped directory tree under the data root, and translates absolute
// paths to and from the externally servable file URLs.
//
// Layout: <dataDir>/jobs/<jobID>/{uploads,artifacts,previews}/...
//
// LockJob takes an advisory flock on <jobDir>/.lock so two runs never share
// one job context.
package storage
