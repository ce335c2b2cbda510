// Package service provides the ranking session service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/faceoff/internal/adapters/catalog"
	"github.com/okian/faceoff/internal/adapters/repository"
	"github.com/okian/faceoff/internal/domain/dedupe"
	"github.com/okian/faceoff/internal/domain/merge"
	"github.com/okian/faceoff/pkg/logger"
	"github.com/okian/faceoff/pkg/metrics"
)

// lockStripes bounds the per-user write locks; users hashing to the same
// stripe simply serialize with each other.
const lockStripes = 256

// Catalog is the external item source used for imports and metadata.
type Catalog interface {
	FollowedArtistIDs(ctx context.Context, userToken string) ([]string, error)
	Artists(ctx context.Context, ids []string) ([]catalog.Artist, error)
}

// StartRequest names the items of a new session, either directly or by dataset.
type StartRequest struct {
	ItemIDs []string
	Dataset string
}

// ChoiceRequest is one human decision.
type ChoiceRequest struct {
	Choice string
	// SessionID, when set, must match the stored session.
	SessionID string
	// ChoiceID, when set, makes the submission idempotent.
	ChoiceID string
}

// Service runs ranking sessions: it feeds choices to the merge engine and
// persists the state after every one of them.
type Service struct {
	mu sync.RWMutex

	sessions repository.SessionStore
	datasets repository.DatasetStore
	catalog  Catalog
	deduper  dedupe.Deduper
	locks    [lockStripes]sync.Mutex

	dedupeSize   int
	maxItems     int
	now          func() time.Time
	newSessionID func() string

	started bool
	logger  logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		dedupeSize:   100_000,
		maxItems:     2_000,
		now:          time.Now,
		newSessionID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	if s.sessions == nil {
		s.sessions = repository.NewMemorySessionStore()
	}
	if s.datasets == nil {
		s.datasets = repository.NewMemoryDatasetStore()
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))

	s.started = true
	s.logger.Info(ctx, "ranking service started",
		logger.Int("maxItems", s.maxItems),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Bool("catalog", s.catalog != nil),
	)
	return nil
}

// Stop marks the service stopped. Store connections belong to the caller.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.started = false
	s.logger.Info(context.Background(), "ranking service stopped")
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

func (s *Service) lockFor(userID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return &s.locks[h.Sum32()%lockStripes]
}

// StartSession begins, or restarts, a user's session over the given items.
// Ids are trimmed and de-duplicated keeping the first occurrence.
func (s *Service) StartSession(ctx context.Context, userID string, req StartRequest) (View, error) {
	if err := s.ready(); err != nil {
		return View{}, err
	}
	userID, err := normalizeUser(userID)
	if err != nil {
		return View{}, err
	}

	raw := req.ItemIDs
	if len(raw) == 0 && strings.TrimSpace(req.Dataset) != "" {
		ids, err := s.Dataset(ctx, req.Dataset)
		if err != nil {
			return View{}, err
		}
		raw = ids
	}
	ids := dedupe.UniqueIDs(raw)
	if len(ids) == 0 {
		return View{}, ErrNoItems
	}
	if len(ids) > s.maxItems {
		return View{}, fmt.Errorf("%w: %d > %d", ErrTooManyItems, len(ids), s.maxItems)
	}

	mu := s.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	sess := repository.Session{
		UserID:    userID,
		SessionID: s.newSessionID(),
		ItemIDs:   ids,
		State:     merge.Initialize(ids),
		UpdatedAt: s.now().UTC(),
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return View{}, fmt.Errorf("save session: %w", err)
	}

	metrics.RecordSessionStarted(len(ids))
	if sess.State.Status == merge.Finished {
		metrics.RecordSessionFinished()
	}
	s.logger.Info(ctx, "session started",
		logger.String("user_id", userID),
		logger.String("session_id", sess.SessionID),
		logger.Int("items", len(ids)),
		logger.Int("duplicates_dropped", len(raw)-len(ids)),
	)
	return newView(sess), nil
}

// GetSession returns the stored session, or ErrSessionNotFound when the user
// has no prior state.
func (s *Service) GetSession(ctx context.Context, userID string) (View, error) {
	if err := s.ready(); err != nil {
		return View{}, err
	}
	userID, err := normalizeUser(userID)
	if err != nil {
		return View{}, err
	}
	sess, err := s.load(ctx, userID)
	if err != nil {
		return View{}, err
	}
	return newView(sess), nil
}

// Choose applies one choice and persists the new state before returning it.
// A repeated ChoiceID and a choice on a finished session both leave the
// state untouched.
func (s *Service) Choose(ctx context.Context, userID string, req ChoiceRequest) (View, error) {
	if err := s.ready(); err != nil {
		return View{}, err
	}
	userID, err := normalizeUser(userID)
	if err != nil {
		return View{}, err
	}
	choice, err := merge.ParseChoice(req.Choice)
	if err != nil {
		return View{}, err
	}

	mu := s.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	sess, err := s.load(ctx, userID)
	if err != nil {
		return View{}, err
	}
	if req.SessionID != "" && req.SessionID != sess.SessionID {
		metrics.RecordChoiceStale()
		return View{}, fmt.Errorf("%w: got %s, current %s", ErrStaleSession, req.SessionID, sess.SessionID)
	}

	var key string
	if req.ChoiceID != "" {
		key = userID + "\x00" + sess.SessionID + "\x00" + req.ChoiceID
		if s.deduper.SeenAndRecord(ctx, key) {
			metrics.RecordChoiceDuplicate()
			s.logger.Debug(ctx, "duplicate choice ignored",
				logger.String("user_id", userID),
				logger.String("choice_id", req.ChoiceID),
			)
			return newView(sess), nil
		}
	}

	if sess.State.Status == merge.Finished {
		metrics.RecordChoiceNoop()
		return newView(sess), nil
	}

	next := merge.Apply(sess.State, choice)
	if next.ComparisonCount == sess.State.ComparisonCount {
		return newView(sess), nil
	}

	sess.State = next
	sess.UpdatedAt = s.now().UTC()
	if err := s.sessions.Save(ctx, sess); err != nil {
		if key != "" {
			s.deduper.Unrecord(ctx, key)
		}
		return View{}, fmt.Errorf("save session: %w", err)
	}

	metrics.RecordComparison()
	s.logger.Debug(ctx, "choice applied",
		logger.String("user_id", userID),
		logger.String("choice", choice.String()),
		logger.Int("comparisons", next.ComparisonCount),
	)
	if next.Status == merge.Finished {
		metrics.RecordSessionFinished()
		s.logger.Info(ctx, "session finished",
			logger.String("user_id", userID),
			logger.String("session_id", sess.SessionID),
			logger.Int("comparisons", next.ComparisonCount),
			logger.Int("items", next.TotalCount),
		)
	}
	return newView(sess), nil
}

// Ranking returns the final order, or the partial one while still playing.
func (s *Service) Ranking(ctx context.Context, userID string) (Ranking, error) {
	if err := s.ready(); err != nil {
		return Ranking{}, err
	}
	userID, err := normalizeUser(userID)
	if err != nil {
		return Ranking{}, err
	}
	sess, err := s.load(ctx, userID)
	if err != nil {
		return Ranking{}, err
	}
	return Ranking{
		Finished:  sess.State.Status == merge.Finished,
		RankedIDs: merge.RankedIDs(sess.State),
	}, nil
}

// Abandon deletes a user's session.
func (s *Service) Abandon(ctx context.Context, userID string) error {
	if err := s.ready(); err != nil {
		return err
	}
	userID, err := normalizeUser(userID)
	if err != nil {
		return err
	}
	mu := s.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	if err := s.sessions.Delete(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrSessionNotFound, userID)
		}
		return fmt.Errorf("delete session: %w", err)
	}
	metrics.RecordSessionAbandoned()
	s.logger.Info(ctx, "session abandoned", logger.String("user_id", userID))
	return nil
}

// normalizeUser trims the id every session key is stored under.
func normalizeUser(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", ErrInvalidUser
	}
	return userID, nil
}

func (s *Service) load(ctx context.Context, userID string) (repository.Session, error) {
	sess, err := s.sessions.Load(ctx, userID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return repository.Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, userID)
	case errors.Is(err, repository.ErrCorruptRecord):
		return repository.Session{}, fmt.Errorf("%w: %v", ErrCorruptSession, err)
	case err != nil:
		return repository.Session{}, fmt.Errorf("load session: %w", err)
	}
	if err := sess.State.Validate(); err != nil {
		s.logger.Error(ctx, "stored session failed validation",
			logger.String("user_id", userID),
			logger.Error(err),
		)
		return repository.Session{}, fmt.Errorf("%w: %v", ErrCorruptSession, err)
	}
	return sess, nil
}

// PutDataset replaces a dataset with the de-duplicated ids.
func (s *Service) PutDataset(ctx context.Context, key string, ids []string) ([]string, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrInvalidDataset
	}
	clean := dedupe.UniqueIDs(ids)
	if len(clean) == 0 {
		return nil, ErrNoItems
	}
	if len(clean) > s.maxItems {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyItems, len(clean), s.maxItems)
	}
	if err := s.datasets.Put(ctx, key, clean); err != nil {
		return nil, fmt.Errorf("put dataset: %w", err)
	}
	s.logger.Info(ctx, "dataset stored",
		logger.String("dataset", key),
		logger.Int("items", len(clean)),
	)
	return clean, nil
}

// Dataset returns the ids stored under key.
func (s *Service) Dataset(ctx context.Context, key string) ([]string, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrInvalidDataset
	}
	ids, err := s.datasets.ItemIDs(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	return ids, nil
}

// ImportDataset replaces a dataset with the artists the token's user follows.
func (s *Service) ImportDataset(ctx context.Context, key, userToken string) ([]string, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if s.catalog == nil {
		return nil, ErrCatalogUnavailable
	}
	ids, err := s.catalog.FollowedArtistIDs(ctx, userToken)
	if err != nil {
		return nil, fmt.Errorf("import followed artists: %w", err)
	}
	return s.PutDataset(ctx, key, ids)
}

// Artists looks up display metadata for a batch of item ids.
func (s *Service) Artists(ctx context.Context, ids []string) ([]catalog.Artist, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if s.catalog == nil {
		return nil, ErrCatalogUnavailable
	}
	return s.catalog.Artists(ctx, dedupe.UniqueIDs(ids))
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":    s.started,
		"maxItems":   s.maxItems,
		"dedupeSize": s.dedupeSize,
		"catalog":    s.catalog != nil,
	}
	if s.started {
		sessions := s.sessions.Count(context.Background())
		stats["sessions"] = sessions
		stats["choiceKeys"] = s.deduper.Size()
		metrics.UpdateActiveSessions(sessions)
	}
	return stats
}
