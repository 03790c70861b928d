package job

import (
	"github.com/backmassage/sdr2hdr/internal/hdrmeta"
	"github.com/backmassage/sdr2hdr/internal/tonemap"
)

// ColorTriplet is the (primaries, transfer, matrix) tag set written to the
// output stream.
type ColorTriplet struct {
	Primaries string
	Transfer  string
	Matrix    string
}

// staticHDR10 is the fixed x265 color description used when light-level
// metadata is embedded.
const staticHDR10 = "colorprim=bt2020:transfer=smpte2084:colormatrix=bt2020nc:" +
	"master-display=" + hdrmeta.MasteringDisplay

// PixelFormat returns the planar 4:2:0 format for the job's bit depth.
func (j ConversionJob) PixelFormat() string {
	if j.p.BitDepth == 10 {
		return "yuv420p10le"
	}
	return "yuv420p"
}

// Color returns the output color tags. Primaries and matrix follow
// ConvertColorSpace (BT.709 → BT.2020); the transfer is SMPTE ST 2084 only
// for the PQ curve.
func (j ConversionJob) Color() ColorTriplet {
	c := ColorTriplet{Primaries: "bt709", Transfer: "bt709", Matrix: "bt709"}
	if j.p.ConvertColorSpace {
		c.Primaries = "bt2020"
		c.Matrix = "bt2020nc"
	}
	if j.p.ToneMode == tonemap.PQ {
		c.Transfer = "smpte2084"
	}
	return c
}

// X265Params returns the value for -x265-params, or "" when metadata is not
// embedded. est supplies sampled light levels for MetadataEstimated and is
// ignored otherwise; it must be non-nil in that mode.
//
//	none:      hdr-opt=1
//	estimated: hdr-opt=1:<static HDR10>:max-cll=<CLL>,<FALL>:max-fall=<FALL>
//	override:  same, with the user-supplied values
func (j ConversionJob) X265Params(est *hdrmeta.Metadata) string {
	if !j.p.EmbedMetadata {
		return ""
	}
	var light hdrmeta.Metadata
	switch j.p.Metadata.Mode {
	case MetadataEstimated:
		if est == nil {
			return ""
		}
		light = *est
	case MetadataOverride:
		light = hdrmeta.Metadata{MaxCLL: j.p.Metadata.MaxCLL, MaxFALL: j.p.Metadata.MaxFALL}
	default:
		return "hdr-opt=1"
	}
	return "hdr-opt=1:" + staticHDR10 + ":" + light.LightLevel()
}
