// Package pipeline turns a list of input arguments into converted files.
//
// [Resolve] expands files and directories into an ordered list of videos,
// and an [Orchestrator] drives each one through metadata estimation and the
// encoder (or the previewer), yielding one [Result] per file from
// [Orchestrator.Run]. Progress is reported through a [StatusFunc] observer.
//
// Files run strictly one at a time. Cancelling the context passed to Run
// stops the in-flight encoder and marks every remaining file cancelled.
package pipeline
