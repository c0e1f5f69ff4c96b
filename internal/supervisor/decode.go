package supervisor

import (
	"math"

	"github.com/markus8006/plcfleet/pkg/models"
)

// decodeRaw converts raw register words into a numeric value according
// to the declared data type. float32 consumes two words in the device's
// declared word order; bool maps any non-zero word to 1.
func decodeRaw(words []uint16, dt models.DataType, order models.WordOrder) float64 {
	switch dt {
	case models.DataUint16:
		return float64(words[0])
	case models.DataInt16:
		return float64(int16(words[0]))
	case models.DataFloat32:
		hi, lo := words[0], words[1]
		if order == models.WordOrderLittle {
			hi, lo = lo, hi
		}
		return float64(math.Float32frombits(uint32(hi)<<16 | uint32(lo)))
	case models.DataBool:
		if words[0] != 0 {
			return 1
		}
		return 0
	}
	return 0
}

// scale applies the linear transform and grades the result. A value
// that leaves the float range is clamped to the signed infinity and
// reported as uncertain.
func scale(raw, factor, offset float64) (float64, models.Quality) {
	v := raw*factor + offset
	if math.IsInf(v, 0) || math.IsNaN(v) {
		inf := math.Inf(1)
		if math.Signbit(v) {
			inf = math.Inf(-1)
		}
		return inf, models.QualityUncertain
	}
	return v, models.QualityGood
}
