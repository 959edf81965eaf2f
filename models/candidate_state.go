package models

type CandidateStatus string

const (
	CandidateStatusPending CandidateStatus = "pending"
	CandidateStatusReady   CandidateStatus = "ready"
	CandidateStatusFailed  CandidateStatus = "failed"
)

// CandidateState is the per-vehicle outcome of a remote image search.
// A Ready state with no URLs means the search succeeded but found nothing.
type CandidateState struct {
	Status CandidateStatus `json:"status"`
	URLs   []string        `json:"urls,omitempty"`
	Reason string          `json:"reason,omitempty"`
}

func PendingState() CandidateState {
	return CandidateState{Status: CandidateStatusPending}
}

func ReadyState(urls []string) CandidateState {
	cp := make([]string, len(urls))
	copy(cp, urls)
	return CandidateState{Status: CandidateStatusReady, URLs: cp}
}

func FailedState(reason string) CandidateState {
	return CandidateState{Status: CandidateStatusFailed, Reason: reason}
}

// Contains reports whether url is one of the ready candidates.
func (s CandidateState) Contains(url string) bool {
	if s.Status != CandidateStatusReady {
		return false
	}
	for _, u := range s.URLs {
		if u == url {
			return true
		}
	}
	return false
}
