// Package config loads, normalizes, and validates the spriteforge TOML
// configuration.
//
// Load resolves the file from an explicit path, ~/.config/spriteforge/config.toml,
// or ./spriteforge.toml, applies repository defaults, expands paths, pulls
// backend credentials from the environment when the file leaves them blank,
// and validates the result. WriteSamples seeds a fresh installation with a
// config file, a model manifest, and the topdown2d.v1 pipeline.
package config
