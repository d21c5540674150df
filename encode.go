package fisco

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// EncodeEntries writes ledger entries as JSONL, one entry per line.
func EncodeEntries(w io.Writer, entries []LedgerEntry) error {
	bw := bufio.NewWriter(w)
	for i, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encoding ledger entry %d: %w", i, err)
		}
		bw.Write(data)
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// EncodeProposals writes the proposal log as JSONL.
func EncodeProposals(w io.Writer, proposals []Proposal) error {
	bw := bufio.NewWriter(w)
	for i, p := range proposals {
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encoding proposal %d: %w", i, err)
		}
		bw.Write(data)
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// EncodeEquity writes the equity series as JSONL.
func EncodeEquity(w io.Writer, points []EquityPoint) error {
	bw := bufio.NewWriter(w)
	for i, p := range points {
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encoding equity point %d: %w", i, err)
		}
		bw.Write(data)
		bw.WriteByte('\n')
	}
	return bw.Flush()
}
