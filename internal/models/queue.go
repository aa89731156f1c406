package models

import "time"

// TaskQueueEntry binds a complaint to a committee role awaiting (or holding)
// an assignment. At most one entry exists per (complaint, role) pair; entries
// survive completion as a historical record of routing decisions.
type TaskQueueEntry struct {
	ID           string  `json:"id"`
	ComplaintID  string  `json:"complaintId"`
	AssignedRole Role    `json:"assignedRole"`
	AssignedUser *string `json:"assignedUser"`

	// WorkloadScore freezes the assignee's load at assignment time for later
	// inspection. It is not consulted by live scheduling decisions.
	WorkloadScore float64    `json:"workloadScore"`
	QueuePosition int64      `json:"queuePosition"`
	AssignedAt    *time.Time `json:"assignedAt"`
	CreatedAt     time.Time  `json:"createdAt"`
}
