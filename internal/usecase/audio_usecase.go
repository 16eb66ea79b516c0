package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/eslsoft/audiolink/internal/entity"
	"github.com/eslsoft/audiolink/internal/repository"
)

// AudioUsecase manages the link between audio recordings and sentences and
// propagates every change to the search index and the stats cache.
type AudioUsecase interface {
	Create(ctx context.Context, draft entity.AudioDraft) (*entity.Audio, error)
	Update(ctx context.Context, id int64, changes entity.AudioChanges) (*entity.Audio, error)
	Delete(ctx context.Context, id int64) error
	// AssignTo attributes the audio of a sentence to ownerName, creating the
	// record if the sentence has none. A registered username wins over a
	// free-text author.
	AssignTo(ctx context.Context, sentenceID int64, ownerName string) (*entity.Audio, error)
	Get(ctx context.Context, id int64) (*entity.Audio, error)
	List(ctx context.Context, query *repository.ListAudioQuery) ([]entity.Audio, int64, error)
}

// NewAudioUsecase wires the stores and collaborators with default behaviour.
func NewAudioUsecase(
	stores repository.Stores,
	tx repository.Transactor,
	notifier repository.ReindexNotifier,
	stats StatsUsecase,
	logger logrus.FieldLogger,
) AudioUsecase {
	return &audioUsecase{
		stores:   stores,
		tx:       tx,
		notifier: notifier,
		stats:    stats,
		logger:   logger.WithField("component", "audio"),
		clock:    time.Now,
	}
}

type audioUsecase struct {
	stores   repository.Stores
	tx       repository.Transactor
	notifier repository.ReindexNotifier
	stats    StatsUsecase
	logger   logrus.FieldLogger
	clock    func() time.Time
}

// mutation runs inside the write transaction. It returns the resulting record
// and the sentences whose search attributes may have changed.
type mutation func(ctx context.Context, tx repository.Stores) (*entity.Audio, []int64, error)

type reindexTicket struct {
	outboxID   int64
	sentenceID int64
}

func (u *audioUsecase) Create(ctx context.Context, draft entity.AudioDraft) (*entity.Audio, error) {
	if draft.SentenceID <= 0 {
		return nil, entity.ErrInvalidSentenceID
	}
	if draft.LicenceID == nil || *draft.LicenceID < 0 {
		return nil, entity.ErrInvalidLicenceID
	}
	if err := draft.Attribution.Validate(); err != nil {
		return nil, err
	}

	return u.write(ctx, func(ctx context.Context, tx repository.Stores) (*entity.Audio, []int64, error) {
		audio := entity.Audio{SentenceID: draft.SentenceID, LicenceID: *draft.LicenceID}
		audio.SetAttribution(draft.Attribution)
		audio.Normalize(u.clock())

		created, err := tx.Audios.Create(ctx, &audio)
		if err != nil {
			return nil, nil, err
		}
		return created, []int64{created.SentenceID}, nil
	})
}

func (u *audioUsecase) Update(ctx context.Context, id int64, changes entity.AudioChanges) (*entity.Audio, error) {
	if id <= 0 {
		return nil, entity.ErrAudioNotFound
	}
	if changes.SentenceID != nil && *changes.SentenceID <= 0 {
		return nil, entity.ErrInvalidSentenceID
	}
	if changes.LicenceID != nil && *changes.LicenceID < 0 {
		return nil, entity.ErrInvalidLicenceID
	}
	if changes.Attribution != nil {
		if err := changes.Attribution.Validate(); err != nil {
			return nil, err
		}
	}

	return u.write(ctx, func(ctx context.Context, tx repository.Stores) (*entity.Audio, []int64, error) {
		current, err := tx.Audios.GetByID(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		prevSentenceID := current.SentenceID

		next := changes.Apply(*current)
		if err := next.Validate(); err != nil {
			return nil, nil, err
		}
		next.Normalize(u.clock())

		updated, err := tx.Audios.Update(ctx, &next)
		if err != nil {
			return nil, nil, err
		}
		// The previous sentence may have lost its audio.
		return updated, []int64{updated.SentenceID, prevSentenceID}, nil
	})
}

func (u *audioUsecase) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return entity.ErrAudioNotFound
	}
	_, err := u.write(ctx, func(ctx context.Context, tx repository.Stores) (*entity.Audio, []int64, error) {
		current, err := tx.Audios.GetByID(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		if err := tx.Audios.Delete(ctx, id); err != nil {
			return nil, nil, err
		}
		return nil, []int64{current.SentenceID}, nil
	})
	return err
}

func (u *audioUsecase) AssignTo(ctx context.Context, sentenceID int64, ownerName string) (*entity.Audio, error) {
	if sentenceID <= 0 {
		return nil, entity.ErrInvalidSentenceID
	}
	ownerName = strings.TrimSpace(ownerName)
	if ownerName == "" {
		return nil, entity.ErrInvalidOwnerName
	}

	return u.write(ctx, func(ctx context.Context, tx repository.Stores) (*entity.Audio, []int64, error) {
		userID, registered, err := tx.Users.FindByUsername(ctx, ownerName)
		if err != nil {
			return nil, nil, err
		}
		attribution := entity.AuthorAttribution(ownerName)
		if registered {
			attribution = entity.UserAttribution(userID)
		}

		existing, err := tx.Audios.FindBySentenceID(ctx, sentenceID)
		if err != nil {
			return nil, nil, err
		}
		now := u.clock()

		if existing != nil {
			// Reassign in place: one audio per sentence.
			next := *existing
			next.SetAttribution(attribution)
			next.LicenceID = 0
			next.Normalize(now)
			updated, err := tx.Audios.Update(ctx, &next)
			if err != nil {
				return nil, nil, err
			}
			return updated, []int64{sentenceID}, nil
		}

		audio := entity.Audio{SentenceID: sentenceID}
		audio.SetAttribution(attribution)
		audio.Normalize(now)
		created, err := tx.Audios.Create(ctx, &audio)
		if err != nil {
			return nil, nil, err
		}
		return created, []int64{sentenceID}, nil
	})
}

func (u *audioUsecase) Get(ctx context.Context, id int64) (*entity.Audio, error) {
	if id <= 0 {
		return nil, entity.ErrAudioNotFound
	}
	return u.stores.Audios.GetByID(ctx, id)
}

func (u *audioUsecase) List(ctx context.Context, query *repository.ListAudioQuery) ([]entity.Audio, int64, error) {
	if query == nil {
		query = &repository.ListAudioQuery{}
	}
	query.Normalize()
	return u.stores.Audios.List(ctx, query)
}

// write runs m in one transaction together with the outbox entries for the
// affected sentences, then invalidates stats and dispatches the triggers.
func (u *audioUsecase) write(ctx context.Context, m mutation) (*entity.Audio, error) {
	var (
		result  *entity.Audio
		tickets []reindexTicket
	)
	err := u.tx.WithinTx(ctx, func(ctx context.Context, tx repository.Stores) error {
		tickets = tickets[:0]
		audio, sentenceIDs, err := m(ctx, tx)
		if err != nil {
			return err
		}
		for _, sentenceID := range lo.Uniq(sentenceIDs) {
			outboxID, err := tx.Outbox.Enqueue(ctx, sentenceID)
			if err != nil {
				return err
			}
			tickets = append(tickets, reindexTicket{outboxID: outboxID, sentenceID: sentenceID})
		}
		result = audio
		return nil
	})
	if err != nil {
		return nil, err
	}

	u.stats.Invalidate()
	u.dispatch(context.WithoutCancel(ctx), tickets)
	return result, nil
}

// dispatch never fails the write: undelivered triggers stay in the outbox
// and are picked up by the relay.
func (u *audioUsecase) dispatch(ctx context.Context, tickets []reindexTicket) {
	for _, t := range tickets {
		log := u.logger.WithField("sentence_id", t.sentenceID)
		if err := u.notifier.FlagForReindex(ctx, t.sentenceID); err != nil {
			log.WithError(err).Warn("reindex dispatch failed, left for relay")
			continue
		}
		if err := u.stores.Outbox.Ack(ctx, t.outboxID); err != nil {
			log.WithError(err).Warn("reindex delivered but outbox ack failed")
			continue
		}
		log.Debug("sentence flagged for reindex")
	}
}
