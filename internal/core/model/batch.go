package model

// BatchID identifies one orchestration run. Every record a run writes
// carries it.
type BatchID = int64

// ProcessingResult is the outcome of one item task.
type ProcessingResult struct {
	Success  bool   `json:"success"`
	EntityID int64  `json:"entityId"`
	ResultID *int64 `json:"resultId,omitempty"`
	Error    string `json:"error,omitempty"`
}

func Succeeded(entityID, resultID int64) ProcessingResult {
	return ProcessingResult{Success: true, EntityID: entityID, ResultID: &resultID}
}

func Failed(entityID int64, err error) ProcessingResult {
	return ProcessingResult{EntityID: entityID, Error: err.Error()}
}

// BatchSummary aggregates a summary batch.
type BatchSummary struct {
	BatchID      BatchID `json:"batchId,omitempty"`
	SuccessCount int     `json:"successCount"`
	FailureCount int     `json:"failureCount"`
	ResultIDs    []int64 `json:"resultIds"`
	Message      string  `json:"message"`
}

// ScanResult aggregates a pairwise relationship scan.
type ScanResult struct {
	BatchID           BatchID `json:"batchId,omitempty"`
	RelationshipCount int     `json:"relationshipCount"`
	RelationshipIDs   []int64 `json:"relationshipIds"`
	RationaleIDs      []int64 `json:"rationaleIds"`
	PairsEvaluated    int     `json:"pairsEvaluated"`
	PairsFailed       int     `json:"pairsFailed"`
}
