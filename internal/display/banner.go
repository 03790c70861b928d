package display

import (
	"fmt"
	"io"

	"github.com/backmassage/sdr2hdr/internal/term"
)

// PrintBanner prints the ASCII art banner and version line, colored when
// term has colors enabled.
func PrintBanner(w io.Writer, version string) {
	fmt.Fprint(w, term.Magenta)
	fmt.Fprint(w, `         _      ___  _         _
 ___  __| |_ _ |_  )| |_  __| |_ _
(_-< / _`+"`"+` | '_| / / | ' \/ _`+"`"+` | '_|
/__/ \__,_|_|  /___||_||_\__,_|_|
`)
	fmt.Fprint(w, term.NC)
	fmt.Fprintf(w, "%sSDR → HDR10 converter%s v%s\n\n", term.Bold, term.NC, version)
}
