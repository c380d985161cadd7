package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// BatchRow is one line of a batch run.
type BatchRow struct {
	Filename       string
	PredictedClass string
	Confidence     string
	Severity       string
}

// PredictDir classifies every .jpg, .jpeg and .png file directly inside dir,
// using up to workers goroutines. Rows are sorted by filename. A file that
// cannot be decoded is skipped with a warning; any other failure stops the run.
func (s *InferenceService) PredictDir(ctx context.Context, dir string, workers int) ([]BatchRow, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	if workers < 1 {
		workers = 1
	}

	rows := make([]*BatchRow, len(names))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := s.AnalyzeFile(ctx, name, filepath.Join(dir, name))
			if err != nil {
				var verr *ValidationError
				if errors.As(err, &verr) {
					s.logger.Warnf(ctx, "skipping %s: %v", name, err)
					return nil
				}
				return fmt.Errorf("%s: %w", name, err)
			}
			rows[i] = &BatchRow{
				Filename:       res.Filename,
				PredictedClass: res.PredictedClass,
				Confidence:     res.Confidence,
				Severity:       res.Severity,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]BatchRow, 0, len(rows))
	for _, r := range rows {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, nil
}
