package client

// ResponseMetadata is the response metadata every family reports.
type ResponseMetadata struct {
	ID           string
	ModelName    string
	FinishReason string
}

// TokenUsage is the token accounting every family reports.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}
