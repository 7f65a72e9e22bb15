// Package main hosts the slidecast CLI entrypoint and command graph.
//
// The Cobra command tree loads a project file, wires the probe caches,
// encoder discovery, and the render pipeline from configuration, and reports
// results as tables or JSON. Rendering logic lives in internal packages;
// commands here only translate flags into jobs and reports into output.
package main
