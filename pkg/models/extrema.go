package models

// BytesPerMB converts byte counts to the megabytes used in extrema rows.
const BytesPerMB = 1024 * 1024

// ExtremaRow is one sample selected for holding a minimum (or maximum) of
// available space inside a window. Rank is the 1-based position among the
// selected rows in id order.
type ExtremaRow struct {
	ID          int64   `json:"id"`
	BeginStamp  int64   `json:"begin_stamp"`
	FsTotal     float64 `json:"fs_total"`
	FsAvail     float64 `json:"fs_avail"`
	FsAvailMB   int64   `json:"fs_avail_mb"`
	PercentUsed float64 `json:"percent_used"`
	Rank        int     `json:"rank"`
}

// NewExtremaRow derives the reported columns from the group aggregate.
// fsTotal must be non-zero.
func NewExtremaRow(id, beginStamp int64, fsTotal, aggregate float64, rank int) ExtremaRow {
	return ExtremaRow{
		ID:          id,
		BeginStamp:  beginStamp,
		FsTotal:     fsTotal,
		FsAvail:     aggregate,
		FsAvailMB:   int64(aggregate / BytesPerMB),
		PercentUsed: (fsTotal - aggregate) / fsTotal * 100,
		Rank:        rank,
	}
}
