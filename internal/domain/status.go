package domain

import "strings"

// JobStatus is the state of a multi-SKU batch.
type JobStatus string

const (
	JobPending    JobStatus = "PENDING"
	JobProcessing JobStatus = "PROCESSING"
	JobCompleted  JobStatus = "COMPLETED"
	JobFailed     JobStatus = "FAILED"
)

// SKUStatus is the outcome of one SKU within a batch.
type SKUStatus string

const (
	SKUCompleted SKUStatus = "completed"
	SKUFailed    SKUStatus = "failed"
	SKUCancelled SKUStatus = "cancelled"
)

var jobStatusCodes = map[string]JobStatus{
	"pending":    JobPending,
	"processing": JobProcessing,
	"completed":  JobCompleted,
	"failed":     JobFailed,
}

// ParseJobStatus returns the status for a given label (case-insensitive).
func ParseJobStatus(label string) (JobStatus, bool) {
	status, ok := jobStatusCodes[strings.ToLower(strings.TrimSpace(label))]

	return status, ok
}

// Severity ranks an insight.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityInfo:     0,
	SeverityWarning:  1,
	SeverityCritical: 2,
}

// Rank orders severities from info (0) to critical (2).
func (s Severity) Rank() int {
	return severityRank[s]
}
