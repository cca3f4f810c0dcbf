package market

import (
	"math"
	"testing"
	"time"

	"longbtc-go/internal/errs"
)

func bars(closes ...float64) []Bar {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	out := make([]Bar, len(closes))
	for i, c := range closes {
		out[i] = Bar{Time: start.Add(time.Duration(i) * time.Minute), Open: c, High: c, Low: c, Close: c}
	}
	return out
}

func TestValidateAcceptsIncreasingSeries(t *testing.T) {
	s := NewSeries(bars(100, 101, 102))
	if err := s.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Len() != 3 {
		t.Fatalf("expected 3 bars, got %d", s.Len())
	}
}

func TestValidateRejectsDuplicateAndBackwardsTimestamps(t *testing.T) {
	dup := bars(100, 101, 102)
	dup[2].Time = dup[1].Time
	if err := NewSeries(dup).Validate(); !errs.IsData(err) {
		t.Fatalf("expected data error for duplicate timestamp, got %v", err)
	}

	back := bars(100, 101, 102)
	back[2].Time = back[0].Time.Add(-time.Minute)
	err := NewSeries(back).Validate()
	if !errs.IsData(err) {
		t.Fatalf("expected data error for backwards timestamp, got %v", err)
	}
}

func TestValidateRejectsNonFinitePrices(t *testing.T) {
	for _, px := range []float64{math.NaN(), math.Inf(1), 0, -1} {
		b := bars(100, 101)
		b[1].Low = px
		if err := NewSeries(b).Validate(); !errs.IsData(err) {
			t.Fatalf("expected data error for price %v, got %v", px, err)
		}
	}
}

func TestNewSeriesCopiesInput(t *testing.T) {
	in := bars(100, 101)
	s := NewSeries(in)
	in[0].Close = 1
	if s.At(0).Close != 100 {
		t.Fatalf("series must not alias caller slice")
	}
}

func TestBuyAndHoldAndFingerprint(t *testing.T) {
	s := NewSeries(bars(100, 90, 110))
	ret, ok := s.BuyAndHold()
	if !ok || math.Abs(ret-0.10) > 1e-12 {
		t.Fatalf("expected 10%% buy and hold, got %v %v", ret, ok)
	}
	if _, ok := NewSeries(bars(100)).BuyAndHold(); ok {
		t.Fatalf("single bar series has no benchmark")
	}
	if s.Fingerprint() != NewSeries(bars(100, 90, 110)).Fingerprint() {
		t.Fatalf("fingerprint must be stable")
	}
	if s.Fingerprint() == NewSeries(bars(100, 90, 111)).Fingerprint() {
		t.Fatalf("fingerprint must change with contents")
	}
}

func TestBarPrice(t *testing.T) {
	b := Bar{Open: 1, Close: 2}
	if b.Price(PriceOpen) != 1 || b.Price(PriceClose) != 2 {
		t.Fatalf("unexpected reference prices")
	}
	if PriceRef("mid").Valid() {
		t.Fatalf("mid is not a valid reference")
	}
}
