package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// JSON dumps the whole report as indented JSON. With an empty Dir the file is
// created in the system temp directory.
type JSON struct {
	Dir    string
	logger *zap.Logger

	// LastFile holds the path of the most recent dump.
	LastFile string
}

var _ Deliverer = (*JSON)(nil)

func NewJSON(dir string, logger *zap.Logger) *JSON {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JSON{Dir: dir, logger: logger}
}

func (j *JSON) Name() string {
	return "json"
}

func (j *JSON) Deliver(_ context.Context, r Report) error {
	filename, err := DumpToFile(j.Dir, r)
	if err != nil {
		return err
	}
	j.LastFile = filename

	j.logger.Info("dumping result to file", zap.String("filename", filename), zap.Int("count", r.Len()))
	return nil
}

// DumpToFile writes the report into a new file in dir and returns its name.
func DumpToFile(dir string, r Report) (string, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("creating dump directory: %w", err)
		}
	}

	file, err := os.CreateTemp(dir, "postings_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	return file.Name(), nil
}
