// SPDX-License-Identifier: Apache-2.0

package models

import "time"

// RotateStartRequest selects the candidate-generation policy.
type RotateStartRequest struct {
	Policy string `json:"policy,omitempty"`
}

// RotateAbortRequest records why a rotation was abandoned.
type RotateAbortRequest struct {
	Reason string `json:"reason,omitempty"`
}

// RotationCandidateResponse is returned by start: the cleartext candidate
// plus the lock window. The candidate exists nowhere else in
// cleartext.
type RotationCandidateResponse struct {
	State        string     `json:"state"`
	Candidate    string     `json:"candidate,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	RecoverUntil *time.Time `json:"recover_until,omitempty"`
}

// RotationStatusResponse reports the normalised rotation state of an item.
type RotationStatusResponse struct {
	State         string     `json:"state"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	RecoverUntil  *time.Time `json:"recover_until,omitempty"`
	AbortedReason string     `json:"aborted_reason,omitempty"`
}
