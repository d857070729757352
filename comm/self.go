package comm

import "sync"

// Self returns a communicator of size one. Collectives return immediately.
func Self() Comm { return &self{} }

type self struct {
	mu    sync.Mutex
	cause error
}

func (s *self) Rank() int { return 0 }
func (s *self) Size() int { return 1 }

func (s *self) err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cause != nil {
		return abortErr(s.cause)
	}
	return nil
}

func (s *self) Barrier() error { return s.err() }

func (s *self) AllReduceFloat64(op Op, x float64) (float64, error) {
	if err := checkOp(op); err != nil {
		return 0, err
	}
	return x, s.err()
}

func (s *self) AllReduceInt(op Op, x int) (int, error) {
	if err := checkOp(op); err != nil {
		return 0, err
	}
	return x, s.err()
}

func (s *self) Bcast(root int, b []byte) ([]byte, error) {
	if err := checkRoot(root, 1); err != nil {
		return nil, err
	}
	return b, s.err()
}

func (s *self) Scatter(root int, parts [][]byte) ([]byte, error) {
	if err := checkRoot(root, 1); err != nil {
		return nil, err
	}
	if err := checkParts(parts, 1); err != nil {
		return nil, err
	}
	return parts[0], s.err()
}

func (s *self) Gather(root int, b []byte) ([][]byte, error) {
	if err := checkRoot(root, 1); err != nil {
		return nil, err
	}
	return [][]byte{b}, s.err()
}

func (s *self) AllGather(b []byte) ([][]byte, error) { return [][]byte{b}, s.err() }

func (s *self) AllToAll(parts [][]byte) ([][]byte, error) {
	if err := checkParts(parts, 1); err != nil {
		return nil, err
	}
	return [][]byte{parts[0]}, s.err()
}

func (s *self) Abort(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cause == nil {
		s.cause = cause
	}
}
