package model

type Document struct {
	Content  string `json:"content"`
	Source   string `json:"source"`
	FileType string `json:"file_type"`
	Size     int64  `json:"size"`
	Mtime    int64  `json:"mtime"`
}
