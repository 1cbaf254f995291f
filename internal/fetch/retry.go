package fetch

import (
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"

	"nexuspvr/backend"
)

// defaultDelays is the fixed backoff schedule between attempts.
var defaultDelays = []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 5 * time.Second}

// RetryDoer wraps a Doer with a bounded retry policy for transient
// connectivity failures only. HTTP error statuses come back as responses,
// not errors, so they are never retried; decode failures happen above this
// layer. After the final attempt the last failure is surfaced as-is.
type RetryDoer struct {
	Base     Doer
	Attempts uint
	Delays   []time.Duration
}

// NewRetryDoer returns a RetryDoer with the standard schedule: up to four
// attempts, waiting 1s, 2s, 3s between them.
func NewRetryDoer(base Doer) *RetryDoer {
	return &RetryDoer{Base: base, Attempts: 4, Delays: defaultDelays}
}

func (d *RetryDoer) Do(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	err := retry.Do(
		func() error {
			r, err := d.Base.Do(req)
			if err != nil {
				return err
			}
			resp = r
			return nil
		},
		retry.Context(req.Context()),
		retry.Attempts(d.Attempts),
		retry.RetryIf(backend.IsTransient),
		retry.DelayType(d.delay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (d *RetryDoer) delay(n uint, _ error, _ *retry.Config) time.Duration {
	delays := d.Delays
	if len(delays) == 0 {
		delays = defaultDelays
	}
	if int(n) < len(delays) {
		return delays[n]
	}
	return delays[len(delays)-1]
}
