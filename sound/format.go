package sound

import "fmt"

// Format identifies a PCM sample encoding, per spec.md §4.3's
// {U8,S16,S24,S24_32} x {1,2} write-format matrix, plus the hardware-only
// Unsigned32 (PWM) and IEC958 (S/PDIF) formats.
type Format int

const (
	FormatUnsigned8 Format = iota
	FormatSigned16
	FormatSigned24
	FormatSigned24_32
	FormatUnsigned32
	FormatIEC958
)

// SampleSize returns the number of bytes one sample occupies in Format f.
func SampleSize(f Format) int {
	switch f {
	case FormatUnsigned8:
		return 1
	case FormatSigned16:
		return 2
	case FormatSigned24:
		return 3
	case FormatSigned24_32, FormatUnsigned32, FormatIEC958:
		return 4
	default:
		return 0
	}
}

// ConvertSample converts one sample from Format from, given as a
// sign-extended 32-bit value in [-(1<<31), 1<<31), to Format to with the
// given output range (used only for FormatUnsigned32, where range is
// clock_frequency/sample_rate per spec.md §4.3; ignored otherwise).
func ConvertSample(value int32, from, to Format, rangeMax int) (int32, error) {
	norm, err := normalize(value, from)
	if err != nil {
		return 0, err
	}

	switch to {
	case FormatSigned16:
		return int32(norm >> 16), nil
	case FormatSigned24, FormatSigned24_32:
		return int32(norm >> 8), nil
	case FormatUnsigned32:
		// norm is a signed sample in [-(1<<31), 1<<31); map to
		// [0, rangeMax).
		unsigned := uint64(int64(norm) + (1 << 31))
		return int32(unsigned * uint64(rangeMax) >> 32), nil
	default:
		return 0, fmt.Errorf("sound: unsupported hardware format %d", to)
	}
}

// normalize widens a Format-from sample to a full-scale signed 32-bit
// value, so every conversion downstream operates in one common domain.
func normalize(value int32, from Format) (int32, error) {
	switch from {
	case FormatUnsigned8:
		return (value - 128) << 24, nil
	case FormatSigned16:
		return value << 16, nil
	case FormatSigned24:
		return value << 8, nil
	case FormatSigned24_32:
		return value << 8, nil
	default:
		return 0, fmt.Errorf("sound: unsupported write format %d", from)
	}
}

// NullFrame returns size bytes of silence in hardware format hw, for
// underrun filling per spec.md §4.3: "the back end emits the null frame
// ... for the shortfall."
func NullFrame(hw Format, rangeMax int, size int) []byte {
	buf := make([]byte, size)

	if hw != FormatUnsigned32 {
		return buf // zero is silence for every signed/IEC958 format
	}

	// PWM's unsigned range has its silence point at the middle of the
	// range, not zero.
	mid := uint32(rangeMax / 2)

	for i := 0; i+4 <= len(buf); i += 4 {
		buf[i] = byte(mid)
		buf[i+1] = byte(mid >> 8)
		buf[i+2] = byte(mid >> 16)
		buf[i+3] = byte(mid >> 24)
	}

	return buf
}
