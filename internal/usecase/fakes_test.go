package usecase

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/eslsoft/audiolink/internal/entity"
	"github.com/eslsoft/audiolink/internal/repository"
)

// fakeDB is an in-memory store implementing every repository the usecases
// need. WithinTx snapshots state and restores it when fn fails.
type fakeDB struct {
	mu        sync.RWMutex
	seq       int64
	outboxSeq int64
	audios    map[int64]*entity.Audio
	outbox    map[int64]entity.PendingReindex
	users     map[string]int64
	languages map[int64]string

	failUsers error
	clock     func() time.Time
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		audios:    make(map[int64]*entity.Audio),
		outbox:    make(map[int64]entity.PendingReindex),
		users:     make(map[string]int64),
		languages: make(map[int64]string),
		clock:     time.Now,
	}
}

func (db *fakeDB) stores() repository.Stores {
	return repository.Stores{Audios: fakeAudios{db}, Users: fakeUsers{db}, Outbox: fakeOutbox{db}}
}

func (db *fakeDB) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Stores) error) error {
	db.mu.Lock()
	audios := make(map[int64]*entity.Audio, len(db.audios))
	for id, a := range db.audios {
		audios[id] = cloneAudio(a)
	}
	outbox := maps.Clone(db.outbox)
	seq, outboxSeq := db.seq, db.outboxSeq
	db.mu.Unlock()

	if err := fn(ctx, db.stores()); err != nil {
		db.mu.Lock()
		db.audios, db.outbox = audios, outbox
		db.seq, db.outboxSeq = seq, outboxSeq
		db.mu.Unlock()
		return err
	}
	return nil
}

func (db *fakeDB) count() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.audios)
}

func (db *fakeDB) pending() []entity.PendingReindex {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := slices.Collect(maps.Values(db.outbox))
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type fakeAudios struct{ db *fakeDB }

func (r fakeAudios) Create(ctx context.Context, a *entity.Audio) (*entity.Audio, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.bySentenceLocked(a.SentenceID); ok {
		return nil, entity.ErrAudioConflict
	}
	r.db.seq++
	copy := cloneAudio(a)
	copy.ID = r.db.seq
	r.db.audios[copy.ID] = copy
	return cloneAudio(copy), nil
}

func (r fakeAudios) Update(ctx context.Context, a *entity.Audio) (*entity.Audio, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.audios[a.ID]; !ok {
		return nil, entity.ErrAudioNotFound
	}
	if other, ok := r.db.bySentenceLocked(a.SentenceID); ok && other.ID != a.ID {
		return nil, entity.ErrAudioConflict
	}
	r.db.audios[a.ID] = cloneAudio(a)
	return cloneAudio(a), nil
}

func (r fakeAudios) GetByID(ctx context.Context, id int64) (*entity.Audio, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	a, ok := r.db.audios[id]
	if !ok {
		return nil, entity.ErrAudioNotFound
	}
	return cloneAudio(a), nil
}

func (r fakeAudios) FindBySentenceID(ctx context.Context, sentenceID int64) (*entity.Audio, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	if a, ok := r.db.bySentenceLocked(sentenceID); ok {
		return cloneAudio(a), nil
	}
	return nil, nil
}

func (r fakeAudios) List(ctx context.Context, query *repository.ListAudioQuery) ([]entity.Audio, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if query == nil {
		return nil, 0, errors.New("list query required")
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	items := make([]entity.Audio, 0, len(r.db.audios))
	for _, a := range r.db.audios {
		items = append(items, *cloneAudio(a))
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	total := int64(len(items))
	start := min(int(query.Offset()), len(items))
	end := min(start+int(query.PageSize), len(items))
	return items[start:end], total, nil
}

func (r fakeAudios) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.audios[id]; !ok {
		return entity.ErrAudioNotFound
	}
	delete(r.db.audios, id)
	return nil
}

func (r fakeAudios) SentencesWithAudio(ctx context.Context, sentenceIDs []int64) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []int64
	for _, id := range sentenceIDs {
		if _, ok := r.db.bySentenceLocked(id); ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (r fakeAudios) CountByLanguage(ctx context.Context) ([]entity.LanguageStat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	totals := map[string]int64{}
	for _, a := range r.db.audios {
		totals[r.db.languages[a.SentenceID]]++
	}
	out := make([]entity.LanguageStat, 0, len(totals))
	for lang, total := range totals {
		out = append(out, entity.LanguageStat{Language: lang, Total: total})
	}
	return out, nil
}

func (db *fakeDB) bySentenceLocked(sentenceID int64) (*entity.Audio, bool) {
	for _, a := range db.audios {
		if a.SentenceID == sentenceID {
			return a, true
		}
	}
	return nil, false
}

type fakeUsers struct{ db *fakeDB }

func (u fakeUsers) FindByUsername(ctx context.Context, username string) (int64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	if u.db.failUsers != nil {
		return 0, false, u.db.failUsers
	}
	u.db.mu.RLock()
	defer u.db.mu.RUnlock()
	id, ok := u.db.users[username]
	return id, ok, nil
}

type fakeOutbox struct{ db *fakeDB }

func (o fakeOutbox) Enqueue(ctx context.Context, sentenceID int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	o.db.mu.Lock()
	defer o.db.mu.Unlock()
	o.db.outboxSeq++
	o.db.outbox[o.db.outboxSeq] = entity.PendingReindex{ID: o.db.outboxSeq, SentenceID: sentenceID, CreatedAt: o.db.clock()}
	return o.db.outboxSeq, nil
}

func (o fakeOutbox) Ack(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o.db.mu.Lock()
	defer o.db.mu.Unlock()
	delete(o.db.outbox, id)
	return nil
}

func (o fakeOutbox) ListPending(ctx context.Context, olderThan time.Time, limit int) ([]entity.PendingReindex, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []entity.PendingReindex
	for _, p := range o.db.pending() {
		if p.CreatedAt.After(olderThan) {
			continue
		}
		out = append(out, p)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// fakeNotifier records every reindex trigger; failing sentences return err.
type fakeNotifier struct {
	mu      sync.Mutex
	calls   []int64
	failing map[int64]error
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{failing: make(map[int64]error)}
}

func (n *fakeNotifier) FlagForReindex(ctx context.Context, sentenceID int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, sentenceID)
	return n.failing[sentenceID]
}

func (n *fakeNotifier) reset() []int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	calls := n.calls
	n.calls = nil
	return calls
}

// fakeCache is a map-backed CacheStore counting writes.
type fakeCache struct {
	mu     sync.Mutex
	items  map[string]any
	writes int
}

func newFakeCache() *fakeCache { return &fakeCache{items: make(map[string]any)} }

func (c *fakeCache) Read(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[key]
	return v, ok
}

func (c *fakeCache) Write(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes++
	c.items[key] = value
}

func (c *fakeCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

func cloneAudio(src *entity.Audio) *entity.Audio {
	if src == nil {
		return nil
	}
	copy := *src
	if src.UserID != nil {
		id := *src.UserID
		copy.UserID = &id
	}
	return &copy
}

func newTestLogger() (*logrus.Logger, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logger, hook
}

func ptr[T any](v T) *T { return &v }
