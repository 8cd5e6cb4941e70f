// Package preflight provides readiness checks for the paths, definitions, and
// backend credentials that spriteforge depends on.
//
// The CLI "spriteforge check" command runs RunAll and renders the results as a
// table; "spriteforge run" calls RunAll before starting a job and refuses to
// run when a required check fails. Backend checks are gated on routing: a
// backend that no capability resolves to is reported but never fails.
package preflight
