package usecase

import (
	"context"

	"github.com/samber/lo"

	"github.com/eslsoft/audiolink/internal/entity"
	"github.com/eslsoft/audiolink/internal/repository"
)

// SearchAttributeUsecase computes per-sentence search attributes for the
// index pipeline. It always reads committed state, never a cache.
type SearchAttributeUsecase interface {
	HasAudio(ctx context.Context, sentenceID int64) (bool, error)
	// HasAudioBatch resolves many sentences at once; every requested id is a key of the result.
	HasAudioBatch(ctx context.Context, sentenceIDs []int64) (map[int64]bool, error)
}

func NewSearchAttributeUsecase(audios repository.AudioRepository) SearchAttributeUsecase {
	return &searchAttributeUsecase{audios: audios}
}

type searchAttributeUsecase struct {
	audios repository.AudioRepository
}

func (u *searchAttributeUsecase) HasAudio(ctx context.Context, sentenceID int64) (bool, error) {
	if sentenceID <= 0 {
		return false, entity.ErrInvalidSentenceID
	}
	found, err := u.audios.SentencesWithAudio(ctx, []int64{sentenceID})
	if err != nil {
		return false, err
	}
	return lo.Contains(found, sentenceID), nil
}

func (u *searchAttributeUsecase) HasAudioBatch(ctx context.Context, sentenceIDs []int64) (map[int64]bool, error) {
	result := make(map[int64]bool, len(sentenceIDs))
	valid := lo.Uniq(lo.Filter(sentenceIDs, func(id int64, _ int) bool { return id > 0 }))
	for _, id := range sentenceIDs {
		result[id] = false
	}
	if len(valid) == 0 {
		return result, nil
	}

	found, err := u.audios.SentencesWithAudio(ctx, valid)
	if err != nil {
		return nil, err
	}
	for _, id := range found {
		result[id] = true
	}
	return result, nil
}
