package probe

import (
	"strconv"
	"strings"
)

// FormatInfo holds container-level metadata from ffprobe's format section.
type FormatInfo struct {
	Filename   string
	NbStreams  int
	FormatName string
	Duration   float64
	Size       int64
	BitRate    int64
}

// VideoStream holds the parsed properties of a single video stream.
type VideoStream struct {
	Index          int
	Codec          string
	PixFmt         string
	Width          int
	Height         int
	NbFrames       int64
	ColorTransfer  string
	ColorPrimaries string
	ColorSpace     string
	IsAttachedPic  bool
	AvgFrameRate   string
}

// ProbeResult is the parsed output of a single ffprobe JSON call.
// PrimaryVideo is the first non-attached-pic video stream (nil if none).
type ProbeResult struct {
	Format       FormatInfo
	PrimaryVideo *VideoStream
}

// Resolution returns "WxH" for the primary video stream, or "unknown".
func (p *ProbeResult) Resolution() string {
	w, h, ok := p.Dimensions()
	if !ok {
		return "unknown"
	}
	return strconv.Itoa(w) + "x" + strconv.Itoa(h)
}

// Dimensions returns the primary video frame size. ok is false when there is
// no video stream or ffprobe reported no geometry.
func (p *ProbeResult) Dimensions() (w, h int, ok bool) {
	if p.PrimaryVideo == nil || p.PrimaryVideo.Width <= 0 || p.PrimaryVideo.Height <= 0 {
		return 0, 0, false
	}
	return p.PrimaryVideo.Width, p.PrimaryVideo.Height, true
}

// FrameRate parses the "num/den" avg_frame_rate of the primary video stream.
// It returns 0 when the rate is missing or malformed ("0/0" is common for
// still images).
func (p *ProbeResult) FrameRate() float64 {
	if p.PrimaryVideo == nil {
		return 0
	}
	num, den, found := strings.Cut(p.PrimaryVideo.AvgFrameRate, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}
