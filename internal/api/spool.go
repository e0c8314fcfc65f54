package api

import "bytes"

// cappedSpool buffers a request body up to a byte cap. Once the cap is
// crossed the buffer is dropped and further writes are counted but not
// stored. Write never returns an error so a tee through the spool cannot
// disturb the reader it shadows.
type cappedSpool struct {
	cap        int64
	buf        bytes.Buffer
	overflowed bool
}

func newCappedSpool(cap int64) *cappedSpool {
	return &cappedSpool{cap: cap}
}

func (s *cappedSpool) Write(p []byte) (int, error) {
	if s.overflowed {
		return len(p), nil
	}
	if int64(s.buf.Len())+int64(len(p)) > s.cap {
		s.overflowed = true
		s.buf.Reset()
		return len(p), nil
	}
	s.buf.Write(p)
	return len(p), nil
}

func (s *cappedSpool) Overflowed() bool { return s.overflowed }

func (s *cappedSpool) Len() int { return s.buf.Len() }

func (s *cappedSpool) Bytes() []byte { return s.buf.Bytes() }
