package fetch

import (
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeDoer struct {
	calls     int
	failUntil int
	failWith  error
	status    int
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	f.calls++
	if f.calls <= f.failUntil {
		return nil, f.failWith
	}
	rec := httptest.NewRecorder()
	status := f.status
	if status == 0 {
		status = http.StatusOK
	}
	rec.WriteHeader(status)
	return rec.Result(), nil
}

func fastRetryDoer(base Doer) *RetryDoer {
	d := NewRetryDoer(base)
	d.Delays = []time.Duration{time.Millisecond}
	return d
}

func TestRetryDoerRecoversFromTransientFailures(t *testing.T) {
	dialErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	base := &fakeDoer{failUntil: 2, failWith: dialErr}
	d := fastRetryDoer(base)

	req, _ := http.NewRequest(http.MethodGet, "http://example.test/", nil)
	resp, err := d.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()

	if base.calls != 3 {
		t.Errorf("expected 3 attempts (2 failures + success), got %d", base.calls)
	}
}

func TestRetryDoerSurfacesFinalFailure(t *testing.T) {
	dialErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	base := &fakeDoer{failUntil: 100, failWith: dialErr}
	d := fastRetryDoer(base)

	req, _ := http.NewRequest(http.MethodGet, "http://example.test/", nil)
	if _, err := d.Do(req); err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if base.calls != 4 {
		t.Errorf("expected exactly 4 attempts, got %d", base.calls)
	}
}

func TestRetryDoerDoesNotRetryNonTransient(t *testing.T) {
	base := &fakeDoer{failUntil: 100, failWith: errors.New("tls handshake rejected")}
	d := fastRetryDoer(base)

	req, _ := http.NewRequest(http.MethodGet, "http://example.test/", nil)
	if _, err := d.Do(req); err == nil {
		t.Fatal("expected error")
	}
	if base.calls != 1 {
		t.Errorf("non-transient failure should not be retried, got %d attempts", base.calls)
	}
}

func TestRetryDoerDoesNotRetryHTTPErrorStatus(t *testing.T) {
	base := &fakeDoer{status: http.StatusInternalServerError}
	d := fastRetryDoer(base)

	req, _ := http.NewRequest(http.MethodGet, "http://example.test/", nil)
	resp, err := d.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected the 500 response to pass through, got %d", resp.StatusCode)
	}
	if base.calls != 1 {
		t.Errorf("HTTP error statuses are not transient, got %d attempts", base.calls)
	}
}
