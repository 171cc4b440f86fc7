package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/revuehq/revue-api/internal/models"
	appErrors "github.com/revuehq/revue-api/pkg/errors"
)

type streamReviewRepository interface {
	FindByID(ctx context.Context, id string) (*models.ReviewItem, error)
}

// StreamService builds chunk plans that let clients replay a review
// item's output as a simulated token stream.
type StreamService struct {
	repo       streamReviewRepository
	chunkWords int
	delayMs    int
	logger     *zap.Logger
}

// NewStreamService constructs a stream service. chunkWords controls how
// many whitespace-separated words each chunk carries.
func NewStreamService(repo streamReviewRepository, chunkWords, delayMs int, logger *zap.Logger) *StreamService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if chunkWords <= 0 {
		chunkWords = 3
	}
	if delayMs <= 0 {
		delayMs = 80
	}
	return &StreamService{repo: repo, chunkWords: chunkWords, delayMs: delayMs, logger: logger}
}

// Plan returns the chunk plan for the given review item.
func (s *StreamService) Plan(ctx context.Context, itemID string) (*models.ChunkPlan, error) {
	item, err := s.repo.FindByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "review item not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load review item")
	}

	return &models.ChunkPlan{
		Chunks:  chunkWords(item.Output, s.chunkWords),
		DelayMs: s.delayMs,
	}, nil
}

// chunkWords splits text into chunks of up to n words. Each chunk keeps
// a trailing space except the last, so concatenation reproduces the
// normalised text exactly.
func chunkWords(text string, n int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var chunks []string
	for i := 0; i < len(words); i += n {
		end := i + n
		if end > len(words) {
			end = len(words)
		}
		chunk := strings.Join(words[i:end], " ")
		if end < len(words) {
			chunk += " "
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}
