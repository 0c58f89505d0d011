package model

type CollectionInfo struct {
	ID                int64   `json:"-"`
	Name              string  `json:"name"`
	Dimension         int     `json:"dimension"`
	DistanceThreshold float64 `json:"distance_threshold"`
	ChunkCount        int64   `json:"chunk_count"`
	Ctime             int64   `json:"ctime"`
}
