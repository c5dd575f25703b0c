package simulator

import "github.com/sellsync/sellsync/internal/job"

type CreateJobRequest struct {
	ResourceKey string         `json:"resource_key"`
	Kind        string         `json:"kind"`
	Config      map[string]any `json:"config,omitempty"`
}

type RestartJobRequest struct {
	Policy string `json:"policy"`
}

type ListJobsResponse struct {
	Jobs []*job.Record `json:"jobs"`
}

type SubmitItemResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
