package probe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Already-HDR Matroska source: cover art at index 0 must not become the
// primary video stream.
const sampleHDR = `{
  "streams": [
    {
      "index": 0,
      "codec_name": "mjpeg",
      "codec_type": "video",
      "width": 600,
      "height": 900,
      "pix_fmt": "yuvj444p",
      "disposition": { "default": 0, "attached_pic": 1 }
    },
    {
      "index": 1,
      "codec_name": "hevc",
      "codec_type": "video",
      "pix_fmt": "yuv420p10le",
      "width": 1920,
      "height": 1080,
      "nb_frames": "34457",
      "color_transfer": "smpte2084",
      "color_primaries": "bt2020",
      "color_space": "bt2020nc",
      "avg_frame_rate": "24000/1001",
      "disposition": { "default": 1, "attached_pic": 0 }
    }
  ],
  "format": {
    "filename": "/media/test/clip.mkv",
    "nb_streams": 4,
    "format_name": "matroska,webm",
    "duration": "1437.123000",
    "size": "1234567890",
    "bit_rate": "6873456"
  }
}`

// Typical SDR phone clip.
const sampleSDR = `{
  "streams": [
    {
      "index": 0,
      "codec_name": "h264",
      "codec_type": "video",
      "pix_fmt": "yuv420p",
      "width": 1280,
      "height": 720,
      "color_transfer": "bt709",
      "color_primaries": "bt709",
      "avg_frame_rate": "30/1",
      "disposition": { "default": 1 }
    }
  ],
  "format": {
    "filename": "/tmp/small.mp4",
    "nb_streams": 1,
    "format_name": "mov,mp4,m4a,3gp,3g2,mj2",
    "duration": "10.0",
    "size": "500000",
    "bit_rate": "400000"
  }
}`

func TestParseJSON_HDRFile(t *testing.T) {
	pr, err := ParseJSON([]byte(sampleHDR))
	require.NoError(t, err)

	assert.Equal(t, "/media/test/clip.mkv", pr.Format.Filename)
	assert.Equal(t, 4, pr.Format.NbStreams)
	assert.InDelta(t, 1437.123, pr.Format.Duration, 1e-9)
	assert.Equal(t, int64(1234567890), pr.Format.Size)
	assert.Equal(t, int64(6873456), pr.Format.BitRate)

	require.NotNil(t, pr.PrimaryVideo)
	assert.Equal(t, 1, pr.PrimaryVideo.Index)
	assert.Equal(t, "hevc", pr.PrimaryVideo.Codec)
	assert.Equal(t, int64(34457), pr.PrimaryVideo.NbFrames)
	assert.False(t, pr.PrimaryVideo.IsAttachedPic)
}

func TestParseJSON_SDRFile(t *testing.T) {
	pr, err := ParseJSON([]byte(sampleSDR))
	require.NoError(t, err)
	require.NotNil(t, pr.PrimaryVideo)
	assert.Equal(t, "h264", pr.PrimaryVideo.Codec)
	assert.Zero(t, pr.PrimaryVideo.NbFrames)
}

func TestParseJSON_InvalidJSON(t *testing.T) {
	_, err := ParseJSON([]byte("not json"))
	assert.Error(t, err)
}

func TestParseJSON_NoStreams(t *testing.T) {
	pr, err := ParseJSON([]byte(`{"streams": [], "format": {}}`))
	require.NoError(t, err)
	assert.Nil(t, pr.PrimaryVideo)
}

func TestAttachedPicSkipped(t *testing.T) {
	data := `{"streams": [
		{"index": 0, "codec_type": "video", "codec_name": "png", "width": 500, "height": 500,
		 "disposition": {"attached_pic": 1}}
	], "format": {}}`
	pr, err := ParseJSON([]byte(data))
	require.NoError(t, err)
	assert.Nil(t, pr.PrimaryVideo, "attached pic alone is not a video stream")
}

func TestResolution(t *testing.T) {
	pr, _ := ParseJSON([]byte(sampleHDR))
	assert.Equal(t, "1920x1080", pr.Resolution())

	pr, _ = ParseJSON([]byte(sampleSDR))
	assert.Equal(t, "1280x720", pr.Resolution())

	assert.Equal(t, "unknown", (&ProbeResult{}).Resolution())
}

func TestDimensions(t *testing.T) {
	pr, _ := ParseJSON([]byte(sampleSDR))
	w, h, ok := pr.Dimensions()
	assert.True(t, ok)
	assert.Equal(t, 1280, w)
	assert.Equal(t, 720, h)

	_, _, ok = (&ProbeResult{PrimaryVideo: &VideoStream{Width: 640}}).Dimensions()
	assert.False(t, ok)
}

func TestFrameRate(t *testing.T) {
	tests := []struct {
		rate string
		want float64
	}{
		{"30/1", 30},
		{"24000/1001", 24000.0 / 1001},
		{"25", 25},
		{"0/0", 0},
		{"", 0},
		{"abc/1", 0},
	}
	for _, tt := range tests {
		t.Run(tt.rate, func(t *testing.T) {
			pr := &ProbeResult{PrimaryVideo: &VideoStream{AvgFrameRate: tt.rate}}
			assert.InDelta(t, tt.want, pr.FrameRate(), 1e-9)
		})
	}
	assert.Zero(t, (&ProbeResult{}).FrameRate())
}

func TestHDRType(t *testing.T) {
	cases := []struct {
		name string
		pr   *ProbeResult
		want string
	}{
		{"smpte2084", &ProbeResult{PrimaryVideo: &VideoStream{ColorTransfer: "smpte2084"}}, "hdr10"},
		{"arib-std-b67", &ProbeResult{PrimaryVideo: &VideoStream{ColorTransfer: "arib-std-b67"}}, "hdr10"},
		{"bt2020 primaries only", &ProbeResult{PrimaryVideo: &VideoStream{ColorPrimaries: "bt2020"}}, "hdr10"},
		{"bt709", &ProbeResult{PrimaryVideo: &VideoStream{ColorTransfer: "bt709", ColorPrimaries: "bt709"}}, "sdr"},
		{"no video", &ProbeResult{}, "sdr"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.pr.HDRType())
			assert.Equal(t, tc.want != "sdr", tc.pr.IsHDR())
		})
	}

	pr, _ := ParseJSON([]byte(sampleHDR))
	assert.True(t, pr.IsHDR())
	pr, _ = ParseJSON([]byte(sampleSDR))
	assert.False(t, pr.IsHDR())
}
