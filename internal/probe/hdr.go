package probe

// HDRType returns "hdr10" if the primary video stream already carries HDR
// color metadata, otherwise "sdr". A smpte2084 or arib-std-b67 transfer or
// bt2020 primaries count as HDR.
func (p *ProbeResult) HDRType() string {
	if p.PrimaryVideo == nil {
		return "sdr"
	}

	switch p.PrimaryVideo.ColorTransfer {
	case "smpte2084", "arib-std-b67":
		return "hdr10"
	}

	if p.PrimaryVideo.ColorPrimaries == "bt2020" {
		return "hdr10"
	}

	return "sdr"
}

// IsHDR reports whether HDRType is not "sdr".
func (p *ProbeResult) IsHDR() bool {
	return p.HDRType() != "sdr"
}
