// Package ffmpeg drives the external ffmpeg binary: it renders the libx265
// encode command for a conversion job, supervises the running encoder
// (start, cooperative cancel, wait), and decodes frames to raw RGB24 for
// metadata estimation and preview.
//
// Files:
//   - builder.go: Build (encode args) and decodeArgs
//   - supervisor.go: Supervisor, Handle, State, Result
//   - terminate_unix.go / terminate_windows.go: platform Terminator
//   - decoder.go: Decoder, a FrameSource over an ffmpeg rawvideo pipe
//   - errors.go: LaunchError, ExitError, stderr classification
package ffmpeg
