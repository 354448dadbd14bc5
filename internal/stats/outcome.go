package stats

import (
	"net/http"
	"time"
)

// RequestOutcome is the terminal result of one dispatched request.
// HasStatus is false when no response arrived; StatusCode is meaningless then.
type RequestOutcome struct {
	TargetURL    string
	StatusCode   int
	HasStatus    bool
	Duration     time.Duration
	Failed       bool
	ErrorMessage string
}

// Responded builds the outcome for a request that produced a response.
func Responded(url string, code int, d time.Duration) RequestOutcome {
	return RequestOutcome{
		TargetURL:  url,
		StatusCode: code,
		HasStatus:  true,
		Duration:   d,
		Failed:     code != http.StatusOK,
	}
}

// TransportFailure builds the outcome for a request that never got a response
// (DNS, refused connection, timeout, protocol error).
func TransportFailure(url string, err error, d time.Duration) RequestOutcome {
	msg := "unknown transport error"
	if err != nil {
		msg = err.Error()
	}
	return RequestOutcome{
		TargetURL:    url,
		Duration:     d,
		Failed:       true,
		ErrorMessage: msg,
	}
}

// Succeeded reports whether the outcome counts as a successful request.
func (o RequestOutcome) Succeeded() bool {
	return !o.Failed && o.HasStatus && o.StatusCode == http.StatusOK
}
