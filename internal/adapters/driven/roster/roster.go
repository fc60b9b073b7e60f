// Package roster loads participant identifiers from survey exports.
package roster

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/convoharvest/internal/core/domain"
	"github.com/custodia-labs/convoharvest/internal/core/ports/driven"
	"github.com/custodia-labs/convoharvest/internal/logger"
)

// Ensure FileRoster implements the interface.
var _ driven.RosterSource = (*FileRoster)(nil)

// byteOrderMark prefixes the header of many spreadsheet exports.
const byteOrderMark = "\ufeff"

// Config selects the roster file and its eligibility filter.
type Config struct {
	// Path is a CSV file with a header row, or a .txt file with one ID per line.
	Path string
	// IDColumn names the identifier column in CSV rosters.
	IDColumn string
	// FilterColumn, when set, keeps only rows where it equals FilterValue.
	FilterColumn string
	// FilterValue is compared after trimming surrounding whitespace.
	FilterValue string
}

// FileRoster reads a roster from the local filesystem.
type FileRoster struct {
	cfg Config
}

// New creates a file roster.
func New(cfg Config) *FileRoster {
	if cfg.IDColumn == "" {
		cfg.IDColumn = "ResponseId"
	}
	return &FileRoster{cfg: cfg}
}

// Load reads the file and returns the de-duplicated roster in file order.
func (r *FileRoster) Load(ctx context.Context) (domain.Roster, error) {
	if r.cfg.Path == "" {
		return nil, fmt.Errorf("%w: roster path not set", domain.ErrInvalidInput)
	}

	f, err := os.Open(r.cfg.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: roster %s does not exist", domain.ErrInvalidInput, r.cfg.Path)
		}
		return nil, fmt.Errorf("open roster: %w", err)
	}
	defer f.Close()

	var ids []string
	if isPlainList(r.cfg.Path) {
		ids, err = readList(ctx, f)
	} else {
		ids, err = readCSV(ctx, f, r.cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("read roster %s: %w", r.cfg.Path, err)
	}

	roster, dupes := domain.NewRoster(ids)
	for _, id := range dupes {
		logger.Warn("Duplicate participant %s in roster, keeping first occurrence", id)
	}
	logger.Debug("Loaded %d participants from %s", roster.Len(), r.cfg.Path)
	return roster, nil
}

func isPlainList(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".list":
		return true
	default:
		return false
	}
}

// readList reads one identifier per line. Blank lines and lines starting
// with # are skipped.
func readList(ctx context.Context, rd io.Reader) ([]string, error) {
	var ids []string
	scanner := bufio.NewScanner(rd)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), byteOrderMark))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	return ids, scanner.Err()
}

func readCSV(ctx context.Context, rd io.Reader, cfg Config) ([]string, error) {
	cr := csv.NewReader(rd)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], byteOrderMark)
	}

	idIdx := columnIndex(header, cfg.IDColumn)
	if idIdx < 0 {
		return nil, fmt.Errorf("%w: column %q not in header", domain.ErrInvalidInput, cfg.IDColumn)
	}
	filterIdx := -1
	if cfg.FilterColumn != "" {
		if filterIdx = columnIndex(header, cfg.FilterColumn); filterIdx < 0 {
			return nil, fmt.Errorf("%w: filter column %q not in header", domain.ErrInvalidInput, cfg.FilterColumn)
		}
	}

	var (
		ids     []string
		skipped int
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if filterIdx >= 0 && field(record, filterIdx) != strings.TrimSpace(cfg.FilterValue) {
			skipped++
			continue
		}
		ids = append(ids, field(record, idIdx))
	}
	if skipped > 0 {
		logger.Debug("Skipped %d roster rows where %s != %q", skipped, cfg.FilterColumn, cfg.FilterValue)
	}
	return ids, nil
}

func columnIndex(header []string, name string) int {
	for i, h := range header {
		if strings.TrimSpace(h) == name {
			return i
		}
	}
	return -1
}

func field(record []string, i int) string {
	if i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}
