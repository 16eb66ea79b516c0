package repository

import (
	"context"

	"github.com/eslsoft/audiolink/internal/entity"
)

// ListAudioQuery holds parameters for listing audio records.
type ListAudioQuery struct {
	Pagination
	FilterOrder
}

// AudioRepository abstracts persistence for audio records to keep usecases storage agnostic.
type AudioRepository interface {
	Create(ctx context.Context, audio *entity.Audio) (*entity.Audio, error)
	Update(ctx context.Context, audio *entity.Audio) (*entity.Audio, error)
	GetByID(ctx context.Context, id int64) (*entity.Audio, error)
	// FindBySentenceID returns nil, nil when the sentence has no audio.
	FindBySentenceID(ctx context.Context, sentenceID int64) (*entity.Audio, error)
	List(ctx context.Context, query *ListAudioQuery) ([]entity.Audio, int64, error)
	Delete(ctx context.Context, id int64) error

	// SentencesWithAudio returns the subset of sentenceIDs referenced by at least one audio.
	SentencesWithAudio(ctx context.Context, sentenceIDs []int64) ([]int64, error)
	// CountByLanguage groups audio records by the language of their sentence.
	CountByLanguage(ctx context.Context) ([]entity.LanguageStat, error)
}
