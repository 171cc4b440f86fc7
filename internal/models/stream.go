package models

// ChunkPlan is a pre-chunked rendering plan for simulated token
// streaming: the text fragments to emit and the fixed delay between
// them.
type ChunkPlan struct {
	Chunks  []string `json:"chunks"`
	DelayMs int      `json:"delayMs"`
}
