package models

import "time"

// AsyncOperation is the acknowledgement the control plane returns for an
// accepted mutation. Acceptance does not mean the change has converged.
type AsyncOperation struct {
	ID            string     `json:"id" yaml:"id"`
	State         string     `json:"state" yaml:"state"`
	OperationType string     `json:"operationType,omitempty" yaml:"operation_type,omitempty"`
	FailureReason string     `json:"failureReason,omitempty" yaml:"failure_reason,omitempty"`
	StartedTime   *time.Time `json:"startedTime,omitempty" yaml:"started_time,omitempty"`
	FinishedTime  *time.Time `json:"finishedTime,omitempty" yaml:"finished_time,omitempty"`
	CheckDuration string     `json:"checkDuration,omitempty" yaml:"check_duration,omitempty"`
}
