package naming

import (
	"fmt"
	"path/filepath"
	"strings"
)

// BatchOutputPath places input's basename inside outputDir. The container
// is kept: ffmpeg picks the muxer from the output extension.
//
//	/media/in/clip.mov → <outputDir>/clip.mov
func BatchOutputPath(input, outputDir string) string {
	return filepath.Join(outputDir, filepath.Base(input))
}

// SnapshotPath names the preview still for frame n of input:
//
//	<dir>/<stem>_f000120.webp
func SnapshotPath(dir, input string, n int) string {
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, fmt.Sprintf("%s_f%06d.webp", stem, n))
}
