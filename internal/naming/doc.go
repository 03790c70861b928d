// Package naming derives output file names: batch output paths, preview
// snapshot names, and in-run collision resolution when two inputs from
// different directories share a basename.
package naming
