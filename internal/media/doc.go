// Package media models probed media assets: their cache identity, kind
// (audio-only or audio/video), duration, audio streams, and the primary video
// stream geometry used to place picture-in-picture overlays.
package media
