package queue

import "errors"

// ErrDuplicateSource is returned by NewJob when the normalized source URL
// already maps to a job. The existing job is returned alongside it so callers
// can surface the prior state instead of double-processing the video.
var ErrDuplicateSource = errors.New("source url already enqueued")

// ErrStaleRun is returned by SetStageGuarded when the run token no longer
// matches the job, meaning a newer run has taken over and the write was
// discarded.
var ErrStaleRun = errors.New("stage write from stale run discarded")
