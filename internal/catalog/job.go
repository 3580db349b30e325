package catalog

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
)

// Phase is the execution phase of a UWS job.
type Phase string

// Job phases defined by the Universal Worker Service pattern.
const (
	PhasePending   Phase = "PENDING"
	PhaseQueued    Phase = "QUEUED"
	PhaseExecuting Phase = "EXECUTING"
	PhaseCompleted Phase = "COMPLETED"
	PhaseError     Phase = "ERROR"
	PhaseAborted   Phase = "ABORTED"
	PhaseHeld      Phase = "HELD"
	PhaseSuspended Phase = "SUSPENDED"
	PhaseArchived  Phase = "ARCHIVED"
	PhaseUnknown   Phase = "UNKNOWN"
)

// ParsePhase normalises a phase string and rejects unknown values.
func ParsePhase(s string) (Phase, error) {
	p := Phase(strings.ToUpper(strings.TrimSpace(s)))
	switch p {
	case PhasePending, PhaseQueued, PhaseExecuting, PhaseCompleted, PhaseError,
		PhaseAborted, PhaseHeld, PhaseSuspended, PhaseArchived, PhaseUnknown:
		return p, nil
	case "":
		return "", fmt.Errorf("empty phase")
	default:
		return "", fmt.Errorf("unknown phase %q", s)
	}
}

// Terminal reports whether the service will not change the phase any more.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseCompleted, PhaseError, PhaseAborted, PhaseArchived:
		return true
	}
	return false
}

// Failed reports a terminal phase without usable results.
func (p Phase) Failed() bool {
	return p.Terminal() && p != PhaseCompleted
}

// Job is the client view of a server-side query job.
type Job struct {
	ID       string `yaml:"id"`
	Location string `yaml:"location"`
	Phase    Phase  `yaml:"phase"`
}

// jobStatus is the subset of the UWS job document the client reads.
type jobStatus struct {
	XMLName      xml.Name
	JobID        string        `xml:"jobId"`
	Phase        string        `xml:"phase"`
	ErrorSummary *errorSummary `xml:"errorSummary"`
}

type errorSummary struct {
	Type    string `xml:"type,attr"`
	Message string `xml:"message"`
}

func decodeJobStatus(body []byte) (jobStatus, Phase, error) {
	var doc jobStatus
	if err := xml.NewDecoder(bytes.NewReader(body)).Decode(&doc); err != nil {
		return doc, "", fmt.Errorf("decode job document: %w", err)
	}
	if doc.XMLName.Local != "job" {
		return doc, "", fmt.Errorf("unexpected root element <%s>", doc.XMLName.Local)
	}
	phase, err := ParsePhase(doc.Phase)
	if err != nil {
		return doc, "", err
	}
	return doc, phase, nil
}

func (s jobStatus) diagnostic() string {
	if s.ErrorSummary == nil {
		return ""
	}
	return strings.TrimSpace(s.ErrorSummary.Message)
}
