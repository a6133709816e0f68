package metadata

import (
	"math"
	"strconv"
)

// unknownLabel is used for flash and white-balance codes not in the tables.
const unknownLabel = "Unknown"

var flashLabels = map[int]string{
	0x00: "No Flash",
	0x01: "Fired",
	0x05: "Fired, Return not detected",
	0x07: "Fired, Return detected",
	0x08: "On, Did not fire",
	0x09: "On, Fired",
	0x0d: "On, Return not detected",
	0x0f: "On, Return detected",
	0x10: "Off, Did not fire",
	0x14: "Off, Did not fire, Return not detected",
	0x18: "Auto, Did not fire",
	0x19: "Auto, Fired",
	0x1d: "Auto, Fired, Return not detected",
	0x1f: "Auto, Fired, Return detected",
	0x20: "No flash function",
	0x30: "Off, No flash function",
	0x41: "Fired, Red-eye reduction",
	0x45: "Fired, Red-eye reduction, Return not detected",
	0x47: "Fired, Red-eye reduction, Return detected",
	0x49: "On, Red-eye reduction",
	0x4d: "On, Red-eye reduction, Return not detected",
	0x4f: "On, Red-eye reduction, Return detected",
	0x50: "Off, Red-eye reduction",
	0x58: "Auto, Did not fire, Red-eye reduction",
	0x59: "Auto, Fired, Red-eye reduction",
	0x5d: "Auto, Fired, Red-eye reduction, Return not detected",
	0x5f: "Auto, Fired, Red-eye reduction, Return detected",
}

var whiteBalanceLabels = map[int]string{
	0: "Auto",
	1: "Manual",
}

// FlashLabel maps an EXIF Flash code to a human label.
func FlashLabel(code int) string {
	if label, ok := flashLabels[code]; ok {
		return label
	}
	return unknownLabel
}

// WhiteBalanceLabel maps an EXIF WhiteBalance code to a human label.
func WhiteBalanceLabel(code int) string {
	if label, ok := whiteBalanceLabels[code]; ok {
		return label
	}
	return unknownLabel
}

// FormatShutter renders an exposure time in seconds: "1/N" below one second,
// otherwise the decimal value with an "s" suffix. ok is false for
// non-positive or non-finite exposures.
func FormatShutter(exposure float64) (string, bool) {
	if exposure <= 0 || math.IsInf(exposure, 0) || math.IsNaN(exposure) {
		return "", false
	}
	if exposure < 1 {
		return "1/" + strconv.FormatInt(int64(math.Round(1/exposure)), 10), true
	}
	return strconv.FormatFloat(exposure, 'f', -1, 64) + "s", true
}
