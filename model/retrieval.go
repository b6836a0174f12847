package model

// GraphRetrieval is what the graph source returned for one query
type GraphRetrieval struct {
	// Matched are the graph entities resolved from the query's entity names, in query order
	Matched []*Entity    `json:"matched"`
	Network *EgoNetwork  `json:"network,omitempty"`
	Hits    []*SearchHit `json:"hits,omitempty"`
}

// RetrievalSet holds the per-source retrieval results of one query.
// A nil field means the source was not requested or was unavailable,
// Reports tells the two apart.
type RetrievalSet struct {
	Graph     *GraphRetrieval   `json:"graph,omitempty"`
	Documents *DocumentSections `json:"documents,omitempty"`
	Reference *string           `json:"reference,omitempty"`
	Reports   []SourceReport    `json:"reports"`
}

// ReindexFailure records why one entity could not be reindexed
type ReindexFailure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// ReindexResult is the outcome of a reindex call
type ReindexResult struct {
	IndexedCount int              `json:"indexed_count"`
	FailedCount  int              `json:"failed_count"`
	Failures     []ReindexFailure `json:"failures,omitempty"`
}
