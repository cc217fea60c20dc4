package marketdata

import (
	"math"
	"testing"

	"github.com/SeanStafford/ENTROPY/internal/entropytypes"
)

func TestSMAInsufficientDataReturnsNaN(t *testing.T) {
	v := SMA([]float64{1, 2}, 5)
	if !math.IsNaN(v) {
		t.Fatalf("expected NaN for insufficient data, got %f", v)
	}
}

func TestSMAComputesAverageOfLastN(t *testing.T) {
	v := SMA([]float64{1, 2, 3, 4, 5}, 3)
	want := (3.0 + 4.0 + 5.0) / 3.0
	if v != want {
		t.Fatalf("expected %f, got %f", want, v)
	}
}

func TestRSIAllGainsIsHundred(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}
	v := RSI(closes, 14)
	if v != 100.0 {
		t.Fatalf("expected RSI 100 for all-gains series, got %f", v)
	}
}

func TestEMASeedsWithSMA(t *testing.T) {
	closes := []float64{1, 2, 3}
	v := EMA(closes, 3)
	want := SMA(closes, 3)
	if v != want {
		t.Fatalf("expected first EMA value to equal seed SMA %f, got %f", want, v)
	}
}

func TestMACDInsufficientHistoryReturnsFalse(t *testing.T) {
	_, _, ok := MACD([]float64{1, 2, 3}, 12, 26, 9)
	if ok {
		t.Fatal("expected MACD to report insufficient history")
	}
}

func TestGoldenCrossDetectsUpwardCross(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 10
	}
	// Flat until the last bar, so yesterday fast == slow and today's jump
	// lifts the fast EMA above the slow one.
	closes[39] = 30
	fastNow := EMA(closes, 5)
	slowNow := EMA(closes, 20)
	state := GoldenCross(closes, 5, 20, fastNow, slowNow)
	if state != entropytypes.CrossGolden {
		t.Fatalf("expected a golden cross, got %q", state)
	}
}
