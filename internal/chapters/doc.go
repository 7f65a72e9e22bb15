// Package chapters derives chapter entries from slide durations and embeds
// them into the finished video.
//
// Start times are the running sum of the planned slide durations in page
// order. They are never measured from the encoded file. Embed writes an
// FFMETADATA1 document, remuxes it into the container with stream copy, and
// writes a companion "<stem>-chapters.txt" listing.
package chapters
