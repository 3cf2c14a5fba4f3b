package storage

import "errors"

// ErrNoSummaries is returned by LatestWindowEnd wrappers that require at
// least one summarized window.
var ErrNoSummaries = errors.New("no summaries for owner")
