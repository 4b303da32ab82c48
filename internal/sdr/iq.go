package sdr

// Unsigned 8-bit IQ, as delivered by RTL2832U based receivers, is centred at 127.5.
const iqOffset = 127.5

// ConvertU8 converts interleaved unsigned 8-bit I/Q pairs into complex samples
// scaled to [-1, 1]. A trailing odd byte is ignored. dst is reused when it is
// large enough.
func ConvertU8(dst []complex128, raw []byte) []complex128 {
	n := len(raw) / 2
	if cap(dst) < n {
		dst = make([]complex128, n)
	}
	dst = dst[:n]

	for i := 0; i < n; i++ {
		re := (float64(raw[2*i]) - iqOffset) / iqOffset
		im := (float64(raw[2*i+1]) - iqOffset) / iqOffset
		dst[i] = complex(re, im)
	}
	return dst
}

// ConvertS8 converts interleaved signed 8-bit I/Q pairs (HackRF) into complex
// samples scaled to [-1, 1).
func ConvertS8(dst []complex128, raw []byte) []complex128 {
	n := len(raw) / 2
	if cap(dst) < n {
		dst = make([]complex128, n)
	}
	dst = dst[:n]

	for i := 0; i < n; i++ {
		re := float64(int8(raw[2*i])) / 128
		im := float64(int8(raw[2*i+1])) / 128
		dst[i] = complex(re, im)
	}
	return dst
}
