package docsource

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/ragdex/internal/model"
	"go.uber.org/zap"
)

type localConfig struct {
	Path string `json:"path"`
}

// localSource walks a directory tree (or reads a single file) on the
// local filesystem. Unreadable or non-text files are logged and skipped
// so one bad file never aborts a whole indexing run.
type localSource struct {
	path string
}

func init() {
	Register("local", createLocalSource)
}

func createLocalSource(args interface{}) (Source, error) {
	config := &localConfig{}
	if err := decodeConfig(args, config); err != nil {
		return nil, err
	}
	if config.Path == "" {
		return nil, fmt.Errorf("local source path is required")
	}
	return &localSource{path: filepath.Clean(config.Path)}, nil
}

func (s *localSource) Name() string {
	return "local"
}

func (s *localSource) Load(ctx context.Context) ([]*model.Document, error) {
	logger := logutil.GetLogger(ctx)
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, fmt.Errorf("stat source path: %w", err)
	}
	if !info.IsDir() {
		doc, err := loadLocalFile(s.path)
		if err != nil {
			return nil, err
		}
		return []*model.Document{doc}, nil
	}

	var docs []*model.Document
	err = filepath.WalkDir(s.path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			// dot directories (.git and friends) are never worth indexing
			if p != s.path && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !SupportedExtension(d.Name()) {
			return nil
		}
		doc, err := loadLocalFile(p)
		if err != nil {
			logger.Warn("skip unreadable file", zap.String("path", p), zap.Error(err))
			return nil
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk source path: %w", err)
	}
	logger.Info("local source loaded", zap.String("path", s.path), zap.Int("documents", len(docs)))
	return docs, nil
}

func loadLocalFile(p string) (*model.Document, error) {
	st, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("file is not valid utf-8 text")
	}
	return &model.Document{
		Content:  string(data),
		Source:   p,
		FileType: fileType(p),
		Size:     st.Size(),
		Mtime:    st.ModTime().Unix(),
	}, nil
}
