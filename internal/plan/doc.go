// Package plan turns per-page material assignments and global output
// parameters into an immutable RenderPlan.
//
// Build is a pure function over already-probed metadata. Every slide becomes
// a SlideSpec whose Body is exactly one of Silent, Audio, or Video; renderers
// switch over the three cases. Problems are collected into a Report rather
// than returned one at a time, so callers can show every issue in one pass.
package plan
