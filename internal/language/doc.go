// Package language normalizes the language tags found in media stream
// metadata and renders them for humans. Tags are canonicalized to BCP 47
// base languages using golang.org/x/text.
package language
