package actions

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

var ErrInvalidFilter = errors.New("invalid action filter")

type Filter struct {
	UserID *int64
	Action string
	Limit  int
	Offset int
}

type Page struct {
	Items  []Record
	Total  int
	Limit  int
	Offset int
}

type Service struct {
	cache *Cache
}

func NewService(cache *Cache) *Service {
	return &Service{cache: cache}
}

func (f Filter) normalized() (Filter, error) {
	if f.Offset < 0 {
		return f, ErrInvalidFilter
	}
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	f.Action = strings.TrimSpace(f.Action)
	return f, nil
}

func (f Filter) matches(rec Record) bool {
	if f.UserID != nil && rec.UserID != *f.UserID {
		return false
	}
	if f.Action != "" && rec.Action != f.Action {
		return false
	}
	return true
}

// Query returns matching records newest first. Lines with equal timestamps
// keep the reverse of their log order.
func (s *Service) Query(ctx context.Context, filter Filter) (Page, error) {
	filter, err := filter.normalized()
	if err != nil {
		return Page{}, err
	}

	snap, err := s.cache.Snapshot(ctx)
	if err != nil {
		return Page{}, fmt.Errorf("load actions: %w", err)
	}

	matched := make([]Record, 0, len(snap.Records))
	for i := len(snap.Records) - 1; i >= 0; i-- {
		if filter.matches(snap.Records[i]) {
			matched = append(matched, snap.Records[i])
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Time.After(matched[j].Time)
	})

	page := Page{
		Items:  []Record{},
		Total:  len(matched),
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
	if filter.Offset >= len(matched) {
		return page, nil
	}
	end := min(filter.Offset+filter.Limit, len(matched))
	page.Items = matched[filter.Offset:end]
	return page, nil
}
