package dataType

const NodeStarterVersion = "1.0.0"

// NodeResult is the outcome of one start request. Err is nil on success.
type NodeResult struct {
	Node int
	URL  string
	Err  error
}

func (r NodeResult) OK() bool {
	return r.Err == nil
}

// Summary holds every NodeResult of a run, indexed by node.
type Summary struct {
	RunID     string
	StartTime int64
	Results   []NodeResult
}

func (s *Summary) Succeeded() int {
	n := 0
	for _, r := range s.Results {
		if r.OK() {
			n++
		}
	}
	return n
}

func (s *Summary) Failed() int {
	return len(s.Results) - s.Succeeded()
}
