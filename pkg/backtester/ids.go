package backtester

import "fmt"

// idSequence generates deterministic, monotonically increasing IDs scoped to
// one engine run. Using a counter instead of time.Now()/uuid keeps repeated
// runs over the same inputs byte-identical.
type idSequence struct {
	prefix  string
	counter int
}

func newIDSequence(prefix string) *idSequence {
	return &idSequence{prefix: prefix}
}

func (s *idSequence) next() string {
	s.counter++
	return fmt.Sprintf("%s-%06d", s.prefix, s.counter)
}
