package reclaim

import (
	"errors"
	"io/fs"
	"os"
	"time"
)

const (
	// DefaultDeleteAttempts is the per-file deletion budget.
	DefaultDeleteAttempts = 20
	// DefaultDeleteBackoff is the fixed spacing between deletion attempts.
	DefaultDeleteBackoff = 100 * time.Millisecond
)

// DeletePolicy bounds how hard the reclaimer tries to remove a single file.
type DeletePolicy struct {
	Attempts int
	Backoff  time.Duration
}

type remover struct {
	policy DeletePolicy
	remove func(string) error
	sleep  func(time.Duration)
}

func newRemover(policy DeletePolicy) *remover {
	if policy.Attempts < 1 {
		policy.Attempts = DefaultDeleteAttempts
	}
	if policy.Backoff < 0 {
		policy.Backoff = DefaultDeleteBackoff
	}
	return &remover{policy: policy, remove: os.Remove, sleep: time.Sleep}
}

// removeFile deletes path, retrying while the file is locked. A missing file
// counts as removed. It returns the last error when the budget runs out.
func (r *remover) removeFile(path string) (int, error) {
	var lastErr error
	for attempt := 1; attempt <= r.policy.Attempts; attempt++ {
		err := r.remove(path)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			return attempt, nil
		}
		lastErr = err
		if attempt < r.policy.Attempts {
			r.sleep(r.policy.Backoff)
		}
	}
	return r.policy.Attempts, lastErr
}

// removeAll deletes every file in order and returns the ones it gave up on.
func (r *remover) removeAll(paths []string) []string {
	var abandoned []string
	for _, path := range paths {
		if _, err := r.removeFile(path); err != nil {
			abandoned = append(abandoned, path)
		}
	}
	return abandoned
}
