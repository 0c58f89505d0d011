package model

// Candidate is a chunk returned from a vector query together with its
// L2 distance to the query embedding. RerankScore is only meaningful
// when Scored is true.
type Candidate struct {
	Chunk       *Chunk  `json:"chunk"`
	Distance    float64 `json:"distance"`
	RerankScore float64 `json:"rerank_score"`
	Scored      bool    `json:"scored"`
}

type SearchStats struct {
	InitialCount        int   `json:"initial_count"`
	AfterDistanceFilter int   `json:"after_distance_filter"`
	AfterRerankFilter   int   `json:"after_rerank_filter"`
	FinalCount          int   `json:"final_count"`
	RerankingTimeMs     int64 `json:"reranking_time_ms"`
	ParseFailures       int   `json:"parse_failures"`
	ScoreErrors         int   `json:"score_errors"`
}

type SourceRef struct {
	SourceName  string  `json:"source_name"`
	ChunkIndex  int     `json:"chunk_index"`
	Distance    float64 `json:"distance"`
	RerankScore float64 `json:"rerank_score"`
	Scored      bool    `json:"scored"`
}

type SearchResult struct {
	Question     string       `json:"question"`
	Collection   string       `json:"collection"`
	Candidates   []*Candidate `json:"candidates"`
	Sources      []*SourceRef `json:"sources"`
	ContextBlock string       `json:"context_block"`
	Stats        SearchStats  `json:"stats"`
	Degraded     bool         `json:"degraded"`
}
