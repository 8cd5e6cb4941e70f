// Package imaging handles raster I/O and composition for the stage runners.
//
// Fetcher resolves the URL forms providers hand back (data:, file://, local
// store URLs, http(s)) into decoded images. PNG, JPEG, GIF, and WebP inputs
// are accepted; every artifact is written as PNG. Cell packing uses
// nearest-neighbour scaling so pixel-art edges survive; reference sheets use
// approximate bilinear scaling since they only steer generation.
package imaging
