// Package textutil normalizes user-entered chapter titles (NFC, collapsed
// whitespace, bounded length) and title-cases generated labels for display.
package textutil
