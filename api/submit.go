package api

// SubmitReq is the body of a submit call. User identity rides in the
// body; authentication happens upstream of this service.
type SubmitReq struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Code     string `json:"code"`
	Language string `json:"language"`
}

// SubmitResp reports the terminal state of a judged submission.
type SubmitResp struct {
	SubmissionID string `json:"submission_id"`
	Status       string `json:"status"`
	TimeMillis   int64  `json:"time_ms"`
	MemoryKB     int64  `json:"mem_kb"`
	Message      string `json:"message,omitempty"`
}

// RunReq is an ad-hoc run of code against a provided stdin, outside of
// any problem or contest.
type RunReq struct {
	Code     string `json:"code"`
	Language string `json:"language"`
	Stdin    string `json:"stdin"`
}

// RunResp mirrors the sandbox execution result of an ad-hoc run.
type RunResp struct {
	ExitCode   int    `json:"exit_code"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	TimeMillis int64  `json:"time_ms"`
	MemoryKB   int64  `json:"mem_kb"`
}
