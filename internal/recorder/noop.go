package recorder

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordRun(_ *RunRecord) error { return nil }
func (n *NoopRecorder) LastRun() (*RunRecord, error) { return nil, ErrNoRuns }
func (n *NoopRecorder) Close() error                 { return nil }
