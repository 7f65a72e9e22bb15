package store

import (
	"context"
	"fmt"
)

// Stats counts the rows held in each table.
type Stats struct {
	MediaProbes    int
	PageRasters    int
	EncoderEntries int
	Runs           int
}

// Stats returns row counts for diagnostic output.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	counts := []struct {
		table string
		dest  *int
	}{
		{"media_probes", &stats.MediaProbes},
		{"page_rasters", &stats.PageRasters},
		{"encoder_discovery", &stats.EncoderEntries},
		{"runs", &stats.Runs},
	}
	for _, c := range counts {
		if _, err := s.queryRow(ctx, []any{c.dest}, "SELECT COUNT(1) FROM "+c.table); err != nil {
			return Stats{}, fmt.Errorf("count %s: %w", c.table, err)
		}
	}
	return stats, nil
}

// ClearCaches removes all cached probe, page, and encoder rows. Run history is
// kept unless includeRuns is set.
func (s *Store) ClearCaches(ctx context.Context, includeRuns bool) error {
	tables := []string{"media_probes", "page_rasters", "encoder_discovery"}
	if includeRuns {
		tables = append(tables, "runs")
	}
	for _, table := range tables {
		if _, err := s.exec(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

// ClearEncoderDiscovery drops discovery results so the next run re-validates.
func (s *Store) ClearEncoderDiscovery(ctx context.Context) error {
	if _, err := s.exec(ctx, "DELETE FROM encoder_discovery"); err != nil {
		return fmt.Errorf("clear encoder discovery: %w", err)
	}
	return nil
}
