package commit

import "errors"

// ErrUnknownCommit is returned when a commit id referenced by the parents
// log or a checkout request has no corresponding commit file on disk.
var ErrUnknownCommit = errors.New("commit: unknown commit id")
