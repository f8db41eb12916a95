package models

// Sample is one filesystem reading for a mount point. A plateau sample keeps
// its row and only moves RenewStamp forward while the reading is unchanged.
type Sample struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	BeginStamp int64   `json:"begin_stamp"`
	RenewStamp int64   `json:"renew_stamp"`
	FsTotal    float64 `json:"fs_total"`
	FsAvail    float64 `json:"fs_avail"`
	InodeTotal float64 `json:"inode_total"`
	InodeAvail float64 `json:"inode_avail"`
}

// Overlaps reports whether the sample was valid at some point in [start, stop].
func (s Sample) Overlaps(start, stop int64) bool {
	return (s.BeginStamp >= start && s.BeginStamp <= stop) ||
		(s.RenewStamp >= start && s.RenewStamp <= stop)
}

// SpaceUsedPercent returns the used share of the filesystem. ok is false when
// the total is zero.
func (s Sample) SpaceUsedPercent() (percent float64, ok bool) {
	return usedPercent(s.FsTotal, s.FsAvail)
}

// InodeUsedPercent returns the used share of inodes. ok is false when the
// total is zero.
func (s Sample) InodeUsedPercent() (percent float64, ok bool) {
	return usedPercent(s.InodeTotal, s.InodeAvail)
}

func usedPercent(total, avail float64) (float64, bool) {
	if total == 0 {
		return 0, false
	}
	return (total - avail) / total * 100, true
}
