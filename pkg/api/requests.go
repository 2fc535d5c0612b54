package api

// SubmitRunRequest is the HTTP request body for POST /api/v1/runs.
type SubmitRunRequest struct {
	Host             string   `json:"host" binding:"required"`
	Token            string   `json:"token"`
	RepoURL          string   `json:"repoUrl" binding:"required"`
	ExecutionBackend string   `json:"executionBackend"`
	LLMProvider      string   `json:"llmProvider"`
	LLMModel         string   `json:"llmModel"`
	MaxIterations    int      `json:"maxIterations"`
	MainRunID        string   `json:"mainRunId" binding:"required"`
	RunIDs           []string `json:"runIds"`
}
