// Package items persists the host's media items: identity, declared type,
// attached file, the metadata record and the pending marker.
package items

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/mediaoffload/internal/media"
)

// ListFilter narrows List. Zero values mean "no constraint".
type ListFilter struct {
	ID          int64
	MimePrefix  string
	OnlyPending bool
	Offset      int
	Limit       int
}

// Repository defines item persistence.
type Repository interface {
	// Get returns common.ErrorNotFound when id is unknown.
	Get(ctx context.Context, id int64) (media.Item, error)
	Create(ctx context.Context, item media.Item) (int64, error)
	// Upsert stores item under item.ID, replacing any existing row.
	Upsert(ctx context.Context, item media.Item) error
	SaveMetadata(ctx context.Context, id int64, meta media.Metadata) error
	SetPending(ctx context.Context, id int64, pending bool) error
	// List returns matching items ordered by id.
	List(ctx context.Context, f ListFilter) ([]media.Item, error)
	Delete(ctx context.Context, id int64) error
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner) (media.Item, error) {
	var it media.Item
	var raw string
	if err := s.Scan(&it.ID, &it.MimeType, &it.AttachedFile, &raw, &it.Pending); err != nil {
		return media.Item{}, err
	}
	if err := decodeMetadata(raw, &it.Metadata); err != nil {
		return media.Item{}, fmt.Errorf("item %d: %w", it.ID, err)
	}
	return it, nil
}

func decodeMetadata(raw string, meta *media.Metadata) error {
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), meta); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}
	return nil
}

func encodeMetadata(meta media.Metadata) (string, error) {
	b, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	return string(b), nil
}
