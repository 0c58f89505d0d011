package model

type Chunk struct {
	Source     string            `json:"source"`
	ChunkIndex int               `json:"chunk_index"`
	Text       string            `json:"text"`
	StartChar  int               `json:"start_char"`
	EndChar    int               `json:"end_char"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}
