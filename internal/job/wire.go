package job

// ExecuteRequest is the body of POST /api/execute.
type ExecuteRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
	Stdin    string `json:"stdin,omitempty"`
}

// ExecuteResponse is the body returned by POST /api/execute. Success false
// carries the reason in Error; no job is created in that case.
type ExecuteResponse struct {
	Success bool   `json:"success"`
	JobID   string `json:"jobId,omitempty"`
	Error   string `json:"error,omitempty"`
}

// StatusResponse is the body of GET /api/status/{jobId}.
type StatusResponse struct {
	Status   Status  `json:"status"`
	Progress int     `json:"progress,omitempty"`
	Result   *Result `json:"result,omitempty"`
	Error    string  `json:"error,omitempty"`
}
