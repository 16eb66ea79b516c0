package usecase

import (
	"context"
	"slices"
	"strconv"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/eslsoft/audiolink/internal/entity"
	"github.com/eslsoft/audiolink/internal/repository"
)

// StatsCacheKey is the cache key of the audio-per-language aggregate.
const StatsCacheKey = "audio_stats"

// StatsUsecase serves the cached audio count per language.
type StatsUsecase interface {
	// GetStats returns languages ordered by total descending, then by code.
	GetStats(ctx context.Context) ([]entity.LanguageStat, error)
	// Invalidate drops the cached aggregate; the next GetStats recomputes it.
	Invalidate()
}

// NewStatsUsecase builds a stats cache over the given store.
func NewStatsUsecase(audios repository.AudioRepository, cache repository.CacheStore) StatsUsecase {
	return &statsUsecase{audios: audios, cache: cache}
}

type statsUsecase struct {
	audios     repository.AudioRepository
	cache      repository.CacheStore
	generation atomic.Uint64
	group      singleflight.Group
}

// cachedStats tags a computed aggregate with the generation it was computed in.
type cachedStats struct {
	generation uint64
	stats      []entity.LanguageStat
}

func (u *statsUsecase) GetStats(ctx context.Context) ([]entity.LanguageStat, error) {
	gen := u.generation.Load()
	if v, ok := u.cache.Read(StatsCacheKey); ok {
		if cached, ok := v.(cachedStats); ok && cached.generation == gen {
			return slices.Clone(cached.stats), nil
		}
	}

	// Callers of the same generation share one computation, so it must not
	// die with whichever caller happened to start it.
	shared := context.WithoutCancel(ctx)
	v, err, _ := u.group.Do(strconv.FormatUint(gen, 10), func() (any, error) {
		stats, err := u.audios.CountByLanguage(shared)
		if err != nil {
			return nil, err
		}
		stats = mergeLanguageStats(stats)
		slices.SortFunc(stats, entity.CompareLanguageStats)
		u.cache.Write(StatsCacheKey, cachedStats{generation: gen, stats: stats})
		return stats, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]entity.LanguageStat)), nil
}

func (u *statsUsecase) Invalidate() {
	u.generation.Add(1)
	u.cache.Delete(StatsCacheKey)
}

// mergeLanguageStats folds rows whose codes normalize to the same language.
func mergeLanguageStats(rows []entity.LanguageStat) []entity.LanguageStat {
	totals := make(map[string]int64, len(rows))
	order := make([]string, 0, len(rows))
	for _, row := range rows {
		lang := entity.NormalizeLanguage(row.Language)
		if _, seen := totals[lang]; !seen {
			order = append(order, lang)
		}
		totals[lang] += row.Total
	}
	out := make([]entity.LanguageStat, 0, len(order))
	for _, lang := range order {
		out = append(out, entity.LanguageStat{Language: lang, Total: totals[lang]})
	}
	return out
}
