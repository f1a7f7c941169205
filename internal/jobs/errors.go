package jobs

import "errors"

// ErrJobFactory wraps failures encountered while building a StandardJob from
// a template: coinbase encoding errors or reward-output value overflow
// against the template's declared remaining value.
var ErrJobFactory = errors.New("jobs: job factory error")

// ErrTemplateIDNotFound is returned by ActivateFutureJob when no future job
// is registered under the given template_id.
var ErrTemplateIDNotFound = errors.New("jobs: template_id not found in future jobs")
