package fisco

import (
	"strings"
	"testing"
)

func TestDecodeQuotes(t *testing.T) {
	jsonl := `{"date":"2024-01-02","symbol":"SWDA.MI","close":95.12,"adjClose":95.12,"high":95.80,"low":94.60,"volume":120000}

{"date":"2024-01-03","symbol":"SWDA.MI","close":96.01,"adjClose":96.01,"high":96.40,"low":95.00,"volume":98000}
{"date":"2024-01-02","symbol":"EIMI.MI","close":28.40,"adjClose":28.40,"high":28.55,"low":28.10,"volume":45000}
`
	feed, err := DecodeQuotes(strings.NewReader(jsonl), "EUR")
	if err != nil {
		t.Fatal(err)
	}
	q, ok := feed.Quote("SWDA.MI", MustParseDate("2024-01-03"))
	if !ok {
		t.Fatal("decoded quote not found")
	}
	if !q.Close.Equal(eur(96.01)) || q.Volume != 98000 {
		t.Errorf("quote = %+v", q)
	}
	if _, ok := feed.Quote("SWDA.MI", MustParseDate("2024-01-04")); ok {
		t.Error("quote exists for an absent day")
	}
}

func TestDecodeQuotes_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		jsonl string
	}{
		{"broken json", `{"date":"2024-01-02","symbol":`},
		{"missing symbol", `{"date":"2024-01-02","close":95.12}`},
		{"missing date", `{"symbol":"SWDA.MI","close":95.12}`},
		{"non-positive close", `{"date":"2024-01-02","symbol":"SWDA.MI","close":0}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeQuotes(strings.NewReader(tt.jsonl), "EUR"); err == nil {
				t.Error("malformed quotes decoded")
			}
		})
	}
}

func TestDecodeSignals(t *testing.T) {
	jsonl := `{"date":"2024-01-02","symbol":"SWDA.MI","state":"RISK_ON","riskScalar":0.8,"volatility20d":0.12,"momentum":0.65}
{"date":"2024-01-02","symbol":"EIMI.MI","state":"HOLD","riskScalar":0.5,"volatility20d":0.20,"momentum":0.10}
{"date":"2024-01-03","symbol":"SWDA.MI","state":"RISK_OFF","riskScalar":0,"volatility20d":0.30,"momentum":-0.20}
`
	src, err := DecodeSignals(strings.NewReader(jsonl))
	if err != nil {
		t.Fatal(err)
	}
	sig, ok := src.Signal("SWDA.MI", MustParseDate("2024-01-02"))
	if !ok {
		t.Fatal("decoded signal not found")
	}
	if sig.State != RiskOn || sig.RiskScalar != 0.8 || sig.Momentum != 0.65 {
		t.Errorf("signal = %+v", sig)
	}

	if got := src.Symbols(); len(got) != 2 || got[0] != "EIMI.MI" || got[1] != "SWDA.MI" {
		t.Errorf("symbols = %v, want sorted pair", got)
	}
	dates := src.Dates()
	if len(dates) != 2 || !dates[0].Before(dates[1]) {
		t.Errorf("dates = %v, want two sorted days", dates)
	}
}

func TestDecodeSignals_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		jsonl string
	}{
		{"unknown state", `{"date":"2024-01-02","symbol":"SWDA.MI","state":"PANIC","riskScalar":0.5}`},
		{"risk scalar above one", `{"date":"2024-01-02","symbol":"SWDA.MI","state":"RISK_ON","riskScalar":1.5}`},
		{"negative volatility", `{"date":"2024-01-02","symbol":"SWDA.MI","state":"RISK_ON","riskScalar":0.5,"volatility20d":-0.1}`},
		{"missing symbol", `{"date":"2024-01-02","state":"RISK_ON","riskScalar":0.5}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeSignals(strings.NewReader(tt.jsonl)); err == nil {
				t.Error("invalid signals decoded")
			}
		})
	}
}

func TestSignalValidate(t *testing.T) {
	ok := Signal{State: RiskOn, RiskScalar: 1, Volatility20d: 0.2}
	if err := ok.Validate(); err != nil {
		t.Errorf("valid signal rejected: %v", err)
	}
	bad := Signal{State: "MAYBE"}
	if err := bad.Validate(); err == nil {
		t.Error("unknown state accepted")
	}
}
