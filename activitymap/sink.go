package activitymap

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-token-auth"
)

// WriterSink writes every event as one normalized JSON line
type WriterSink struct {
	mu   sync.Mutex
	enc  *json.Encoder
	opts []Option
}

var _ auth.ActivitySink = (*WriterSink)(nil)

// NewWriterSink returns a sink that writes to w
func NewWriterSink(w io.Writer, opts ...Option) *WriterSink {
	return &WriterSink{enc: json.NewEncoder(w), opts: opts}
}

func (s *WriterSink) Record(_ context.Context, event auth.ActivityEvent) error {
	record := Normalize(event, s.opts...)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enc.Encode(record); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to write activity record")
	}
	return nil
}
