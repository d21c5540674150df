package fisco

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestJSONObjectWriter(t *testing.T) {
	var w jsonObjectWriter
	w.Append("b", 2)
	w.Append("a", 1)
	w.Optional("empty", "")
	w.Optional("set", "x")
	got, err := w.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	// Insertion order is preserved, zero optionals are dropped.
	if string(got) != `{"b":2,"a":1,"set":"x"}` {
		t.Errorf("marshal = %s", got)
	}
}

func TestJSONObjectWriterEmpty(t *testing.T) {
	var w jsonObjectWriter
	got, err := w.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "{}" {
		t.Errorf("marshal = %s", got)
	}
}

func TestEncodeEntries(t *testing.T) {
	deposit := testEntry("2024-01-02", EntryDeposit)
	buy := testEntry("2024-01-03", EntryBuy)
	buy.Fees = eur(2)
	buy.PMCSnapshot = eur(10.20)

	var sb strings.Builder
	if err := EncodeEntries(&sb, []LedgerEntry{deposit, buy}); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(sb.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}

	// Stable field order: the audit trail diffs cleanly between runs.
	if !strings.HasPrefix(lines[0], `{"date":"2024-01-02","type":"DEPOSIT"`) {
		t.Errorf("deposit line = %s", lines[0])
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &decoded); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"symbol", "quantity", "price", "fees", "pmcSnapshot", "runId", "runType", "decisionPath", "reasonCode"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("buy line missing %q: %s", key, lines[1])
		}
	}
	// A deposit has no trade fields.
	if strings.Contains(lines[0], "pmcSnapshot") || strings.Contains(lines[0], "symbol") {
		t.Errorf("deposit line carries trade fields: %s", lines[0])
	}
}

func TestEncodeProposalsAndEquity(t *testing.T) {
	var sb strings.Builder
	err := EncodeProposals(&sb, []Proposal{
		{RunID: "run-1", RunType: RunBacktest, Date: MustParseDate("2024-01-03"), Symbol: "EIMI.MI", Side: SideBuy, Status: StatusRejected, Reason: RejectCashInsufficient},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(sb.String(), `"reason":"CASH_INSUFFICIENT"`) {
		t.Errorf("proposal line = %s", sb.String())
	}

	sb.Reset()
	err = EncodeEquity(&sb, []EquityPoint{
		{Date: MustParseDate("2024-01-02"), Cash: eur(1000), Positions: eur(0), Total: eur(1000)},
	})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(sb.String(), "\n") != 1 {
		t.Errorf("equity output = %q", sb.String())
	}
}
