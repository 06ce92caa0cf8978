package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"muichiro-nexus/internal/model"
	"muichiro-nexus/internal/repository"
	"muichiro-nexus/pkg/log"
)

// SearchService runs keyword search over a user's files.
type SearchService interface {
	Search(ctx context.Context, userID, query string, filters model.SearchFilters) ([]model.RankedFile, error)
}

type searchService struct {
	fileRepo repository.FileRepository
	now      func() time.Time
}

func NewSearchService(fileRepo repository.FileRepository) SearchService {
	return &searchService{fileRepo: fileRepo, now: time.Now}
}

func (s *searchService) Search(ctx context.Context, userID, query string, filters model.SearchFilters) ([]model.RankedFile, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	filter := s.toFileFilter(filters)
	files, err := s.fileRepo.ListForSearch(ctx, userID, filter)
	if err != nil {
		log.Errorf("[SearchService] loading candidates for user %s failed: %v", userID, err)
		return nil, fmt.Errorf("failed to load files: %w", err)
	}

	results := Rank(query, files)
	log.Infof("[SearchService] query '%s' ranked %d of %d files", query, len(results), len(files))
	return results, nil
}

func (s *searchService) toFileFilter(f model.SearchFilters) repository.FileFilter {
	var out repository.FileFilter

	switch f.FileType {
	case model.CategoryImage, model.CategoryDocument:
		out.Category = f.FileType
	}

	switch f.Analyzed {
	case model.FilterAnalyzed:
		v := true
		out.Analyzed = &v
	case model.FilterUnanalyzed:
		v := false
		out.Analyzed = &v
	}

	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch f.DateRange {
	case model.RangeToday:
		out.UploadedAfter = midnight
	case model.RangeWeek:
		out.UploadedAfter = now.AddDate(0, 0, -7)
	case model.RangeMonth:
		out.UploadedAfter = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	}
	return out
}
