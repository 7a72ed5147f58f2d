package types

import (
	"testing"
	"time"
)

func TestSubjectKeyBucketsTime(t *testing.T) {
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	s := Subject{
		Kind:         SubjectToken,
		TokenAddress: "0xabc",
		ContractHash: "0xdeadbeefcafebabe",
		ObservedAt:   base,
	}

	near := s
	near.ObservedAt = base.Add(10 * time.Second)
	if s.Key() != near.Key() {
		t.Errorf("Expected snapshots %v apart to share a key: %q vs %q", 10*time.Second, s.Key(), near.Key())
	}

	far := s
	far.ObservedAt = base.Add(45 * time.Second)
	if s.Key() == far.Key() {
		t.Errorf("Expected snapshots in different buckets to differ, both %q", s.Key())
	}
}

func TestSubjectKeyDistinguishesTokens(t *testing.T) {
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	a := Subject{Kind: SubjectToken, TokenAddress: "0xaaa", ObservedAt: base}
	b := Subject{Kind: SubjectToken, TokenAddress: "0xbbb", ObservedAt: base}

	if a.Key() == b.Key() {
		t.Errorf("Expected distinct tokens to produce distinct keys, both %q", a.Key())
	}

	m := a
	m.Kind = SubjectMarket
	if a.Key() == m.Key() {
		t.Error("Expected subject kind to be part of the key")
	}
}

func TestVolatilityClassification(t *testing.T) {
	tests := []struct {
		change float64
		want   VolatilityClass
	}{
		{0, VolatilityLow},
		{1.9, VolatilityLow},
		{-1.9, VolatilityLow},
		{2, VolatilityNormal},
		{-5, VolatilityNormal},
		{9.9, VolatilityNormal},
		{10, VolatilityHigh},
		{-12, VolatilityHigh},
		{50, VolatilityHigh},
	}
	for _, tt := range tests {
		snap := MarketSnapshot{PriceChange1hPct: tt.change}
		if got := snap.Volatility(); got != tt.want {
			t.Errorf("Expected %v for %.1f%% move, got %v", tt.want, tt.change, got)
		}
	}
}

func TestStrategy(t *testing.T) {
	if !Auto.IsAuto() {
		t.Error("Expected zero strategy to be auto")
	}
	if Auto.String() != "auto" {
		t.Errorf("Expected auto string, got %q", Auto.String())
	}

	e := Explicit("gpt")
	if e.IsAuto() {
		t.Error("Expected explicit strategy not to be auto")
	}
	if e.String() != "explicit:gpt" {
		t.Errorf("Expected explicit:gpt, got %q", e.String())
	}
}
