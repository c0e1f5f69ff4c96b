package supervisor

import (
	"math"
	"testing"

	"github.com/markus8006/plcfleet/pkg/models"
)

func TestDecodeRaw_uint16(t *testing.T) {
	if got := decodeRaw([]uint16{65535}, models.DataUint16, models.WordOrderBig); got != 65535 {
		t.Errorf("uint16 = %v, want 65535", got)
	}
}

func TestDecodeRaw_int16_twos_complement(t *testing.T) {
	if got := decodeRaw([]uint16{0xFFFF}, models.DataInt16, models.WordOrderBig); got != -1 {
		t.Errorf("int16 0xFFFF = %v, want -1", got)
	}
	if got := decodeRaw([]uint16{0x8000}, models.DataInt16, models.WordOrderBig); got != -32768 {
		t.Errorf("int16 0x8000 = %v, want -32768", got)
	}
}

func TestDecodeRaw_float32_word_orders(t *testing.T) {
	bits := math.Float32bits(12.5)
	hi := uint16(bits >> 16)
	lo := uint16(bits & 0xFFFF)

	if got := decodeRaw([]uint16{hi, lo}, models.DataFloat32, models.WordOrderBig); got != 12.5 {
		t.Errorf("float32 big = %v, want 12.5", got)
	}
	if got := decodeRaw([]uint16{lo, hi}, models.DataFloat32, models.WordOrderLittle); got != 12.5 {
		t.Errorf("float32 little = %v, want 12.5", got)
	}
}

func TestDecodeRaw_bool(t *testing.T) {
	if got := decodeRaw([]uint16{7}, models.DataBool, models.WordOrderBig); got != 1 {
		t.Errorf("bool non-zero = %v, want 1", got)
	}
	if got := decodeRaw([]uint16{0}, models.DataBool, models.WordOrderBig); got != 0 {
		t.Errorf("bool zero = %v, want 0", got)
	}
}

func TestScale_linear(t *testing.T) {
	v, q := scale(42, 2, -1)
	if v != 83 {
		t.Errorf("scale(42, 2, -1) = %v, want 83", v)
	}
	if q != models.QualityGood {
		t.Errorf("quality = %s, want good", q)
	}
}

func TestScale_overflow_clamps_to_signed_infinity(t *testing.T) {
	v, q := scale(math.MaxFloat64, 2, 0)
	if !math.IsInf(v, 1) {
		t.Errorf("positive overflow = %v, want +Inf", v)
	}
	if q != models.QualityUncertain {
		t.Errorf("quality = %s, want uncertain on overflow", q)
	}

	v, q = scale(-math.MaxFloat64, 2, 0)
	if !math.IsInf(v, -1) {
		t.Errorf("negative overflow = %v, want -Inf", v)
	}
	if q != models.QualityUncertain {
		t.Errorf("quality = %s, want uncertain on overflow", q)
	}
}
