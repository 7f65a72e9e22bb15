package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// MediaProbe returns the stored payload for a media identity key.
func (s *Store) MediaProbe(ctx context.Context, identityKey string) ([]byte, bool, error) {
	var payload []byte
	found, err := s.queryRow(ctx, []any{&payload},
		`SELECT payload FROM media_probes WHERE identity_key = ?`, identityKey)
	if err != nil {
		return nil, false, fmt.Errorf("load media probe: %w", err)
	}
	return payload, found, nil
}

// SaveMediaProbe stores a media probe payload. Older entries for the same path
// are dropped since a path only ever has one current identity.
func (s *Store) SaveMediaProbe(ctx context.Context, identityKey, path string, payload []byte) error {
	if strings.TrimSpace(identityKey) == "" {
		return fmt.Errorf("media probe identity key is required")
	}
	if _, err := s.exec(ctx, `DELETE FROM media_probes WHERE path = ? AND identity_key <> ?`, path, identityKey); err != nil {
		return fmt.Errorf("prune media probes: %w", err)
	}
	_, err := s.exec(ctx, `
		INSERT INTO media_probes (identity_key, path, payload, probed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(identity_key) DO UPDATE SET payload = excluded.payload, probed_at = excluded.probed_at`,
		identityKey, path, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save media probe: %w", err)
	}
	return nil
}

// PageRaster returns the stored payload for one page of a document.
func (s *Store) PageRaster(ctx context.Context, documentFingerprint string, index int) ([]byte, bool, error) {
	var payload []byte
	found, err := s.queryRow(ctx, []any{&payload},
		`SELECT payload FROM page_rasters WHERE document_fingerprint = ? AND page_index = ?`,
		documentFingerprint, index)
	if err != nil {
		return nil, false, fmt.Errorf("load page raster: %w", err)
	}
	return payload, found, nil
}

// SavePageRaster stores the payload for one page of a document.
func (s *Store) SavePageRaster(ctx context.Context, documentFingerprint string, index int, payload []byte) error {
	if strings.TrimSpace(documentFingerprint) == "" {
		return fmt.Errorf("document fingerprint is required")
	}
	_, err := s.exec(ctx, `
		INSERT INTO page_rasters (document_fingerprint, page_index, payload, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(document_fingerprint, page_index) DO UPDATE SET payload = excluded.payload, created_at = excluded.created_at`,
		documentFingerprint, index, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save page raster: %w", err)
	}
	return nil
}

// EncoderDiscovery returns the stored discovery payload for a host and the
// time it was recorded.
func (s *Store) EncoderDiscovery(ctx context.Context, hostFingerprint string) ([]byte, time.Time, bool, error) {
	var (
		payload []byte
		at      time.Time
	)
	found, err := s.queryRow(ctx, []any{&payload, &at},
		`SELECT payload, discovered_at FROM encoder_discovery WHERE host_fingerprint = ?`, hostFingerprint)
	if err != nil {
		return nil, time.Time{}, false, fmt.Errorf("load encoder discovery: %w", err)
	}
	return payload, at, found, nil
}

// SaveEncoderDiscovery stores the discovery payload for a host.
func (s *Store) SaveEncoderDiscovery(ctx context.Context, hostFingerprint string, payload []byte) error {
	_, err := s.exec(ctx, `
		INSERT INTO encoder_discovery (host_fingerprint, payload, discovered_at)
		VALUES (?, ?, ?)
		ON CONFLICT(host_fingerprint) DO UPDATE SET payload = excluded.payload, discovered_at = excluded.discovered_at`,
		hostFingerprint, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save encoder discovery: %w", err)
	}
	return nil
}
