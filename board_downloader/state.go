package board_downloader

// RunState is a stage of a download run.
type RunState string

const (
	StateIdle             RunState = "Idle"
	StateFetchingMetadata RunState = "FetchingMetadata"
	StateListingItems     RunState = "ListingItems"
	StateDownloading      RunState = "Downloading"
	StateDone             RunState = "Done"
	StateFailed           RunState = "Failed"
)

func (s RunState) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition can happen.
func (s RunState) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// canTransition reports whether a run may move from s to next.
// Failed is reachable from every non-terminal state.
func (s RunState) canTransition(next RunState) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StateFailed {
		return true
	}
	switch s {
	case StateIdle:
		return next == StateFetchingMetadata
	case StateFetchingMetadata:
		return next == StateListingItems
	case StateListingItems:
		return next == StateDownloading
	case StateDownloading:
		return next == StateDone
	}
	return false
}
