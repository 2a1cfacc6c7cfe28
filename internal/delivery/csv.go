package delivery

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/jobmatch/internal/posting"
)

var csvHeader = []string{
	"Title", "Company", "Location", "Match Score", "Semantic Score",
	"Skill Match Score", "Filter Score", "Matched Skills", "Posted Date",
	"Apply URL", "Source",
}

// CSV exports the report postings as a spreadsheet-friendly CSV file in Dir.
type CSV struct {
	Dir    string
	logger *zap.Logger
}

var _ Deliverer = (*CSV)(nil)

func NewCSV(dir string, logger *zap.Logger) *CSV {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CSV{Dir: dir, logger: logger}
}

func (c *CSV) Name() string {
	return "csv"
}

func (c *CSV) Deliver(_ context.Context, r Report) error {
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return fmt.Errorf("creating csv directory: %w", err)
	}

	path := filepath.Join(c.Dir, fileName("jobs", r, "csv"))
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating csv file: %w", err)
	}
	defer file.Close()

	if err := WriteCSV(file, r.Postings); err != nil {
		return fmt.Errorf("writing csv file %q: %w", path, err)
	}

	c.logger.Info("results saved to csv", zap.String("filename", path), zap.Int("count", r.Len()))
	return nil
}

// WriteCSV writes a header row followed by one row per posting.
func WriteCSV(w io.Writer, postings []posting.Scored) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return err
	}

	for _, p := range postings {
		posted := ""
		if p.PostedAt != nil {
			posted = p.PostedAt.UTC().Format(time.RFC3339)
		}

		row := []string{
			p.Title,
			p.Company,
			p.Location.String(),
			formatScore(p.Match),
			formatScore(p.Semantic),
			formatScore(p.SkillMatch),
			formatScore(p.Filter),
			strings.Join(p.MatchedSkills, ", "),
			posted,
			p.ApplyURL,
			p.Source,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// fileName builds "<prefix>_<timestamp>_<run id prefix>.<ext>".
func fileName(prefix string, r Report, ext string) string {
	at := r.GeneratedAt
	if at.IsZero() {
		at = time.Now()
	}

	id := r.RunID
	if len(id) > 8 {
		id = id[:8]
	}

	name := prefix + "_" + at.Format("20060102_150405")
	if id != "" {
		name += "_" + id
	}
	return name + "." + ext
}
