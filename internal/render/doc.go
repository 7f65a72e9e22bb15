// Package render materializes one slide of a RenderPlan as an elementary
// audio/video segment.
//
// Every segment is encoded to the plan's resolution, frame rate, pixel
// format, sample rate, and channel layout so the concatenator can join them
// with stream copy. Silent slides get generated silence rather than no audio
// track. Renders are independent: each writes only its own file under the
// directory it is given, so callers may run them concurrently.
package render
