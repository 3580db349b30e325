package catalog

import (
	"fmt"
	"time"
)

// TransportError reports a connection, tunnel or I/O failure talking to the
// archive.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError reports a response that does not follow the async job
// protocol: a missing redirect, an unreadable status document, an
// unexpected HTTP status.
type ProtocolError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *ProtocolError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Message)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// QueryTimeoutError is returned when a job is still running after the
// polling deadline.
type QueryTimeoutError struct {
	JobID     string
	LastPhase Phase
	Timeout   time.Duration
}

func (e *QueryTimeoutError) Error() string {
	return fmt.Sprintf("job %s still %s after %s", e.JobID, e.LastPhase, e.Timeout)
}

// RemoteQueryError is returned when the service ends a job in ERROR or
// ABORTED.
type RemoteQueryError struct {
	JobID      string
	Phase      Phase
	Diagnostic string
}

func (e *RemoteQueryError) Error() string {
	if e.Diagnostic == "" {
		return fmt.Sprintf("job %s ended in phase %s", e.JobID, e.Phase)
	}
	return fmt.Sprintf("job %s ended in phase %s: %s", e.JobID, e.Phase, e.Diagnostic)
}
