package fisco

import (
	"context"
)

// RunInfo is the catalog row for one stored run.
type RunInfo struct {
	RunID   string  `json:"runId"`
	RunType RunType `json:"runType"`
	Start   Date    `json:"start"`
	End     Date    `json:"end"`
	Entries int     `json:"entries"`
}

// RunStore persists completed runs. Rows are partitioned by run id:
// ledger entries, the proposal log and the tax-loss buckets of different
// runs never mix. Re-running a run id requires ClearRun first; stores do
// not silently overwrite.
type RunStore interface {
	// SaveRun persists the full result of a run. It fails if rows for the
	// run id already exist.
	SaveRun(ctx context.Context, res *RunResult) error

	// ClearRun removes every row belonging to the run id.
	ClearRun(ctx context.Context, runID string) error

	// LoadEntries returns the run's ledger entries in chronological order.
	LoadEntries(ctx context.Context, runID string) ([]LedgerEntry, error)

	// LoadProposals returns the run's proposal log.
	LoadProposals(ctx context.Context, runID string) ([]Proposal, error)

	// LoadBuckets returns the run's final tax-loss buckets.
	LoadBuckets(ctx context.Context, runID string) ([]TaxLossBucket, error)

	// LoadEquity returns the run's daily equity series.
	LoadEquity(ctx context.Context, runID string) ([]EquityPoint, error)

	// Runs lists the stored runs.
	Runs(ctx context.Context) ([]RunInfo, error)

	Close() error
}
