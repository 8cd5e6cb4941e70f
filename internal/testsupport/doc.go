// Package testsupport provides fixtures shared by package tests: throwaway
// configurations rooted in t.TempDir, seeded definitions, and small images.
package testsupport
