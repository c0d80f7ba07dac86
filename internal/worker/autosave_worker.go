package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/mockmate/internal/config"
	"github.com/stemsi/mockmate/internal/model"
)

// AnswerStore is where journaled answers end up.
type AnswerStore interface {
	UpsertAnswer(ctx context.Context, ev model.AnswerEvent) error
}

// AutosaveWorker consumes persist_answers_queue and upserts answers into the store.
type AutosaveWorker struct {
	store      AnswerStore
	rdb        *redis.Client
	queue      string
	pollWait   time.Duration
	retryDelay time.Duration
	log        zerolog.Logger
}

// NewAutosaveWorker creates a new AutosaveWorker.
func NewAutosaveWorker(store AnswerStore, rdb *redis.Client, log zerolog.Logger) *AutosaveWorker {
	return &AutosaveWorker{
		store:      store,
		rdb:        rdb,
		queue:      config.WorkerKey.PersistAnswersQueue,
		pollWait:   time.Second,
		retryDelay: 5 * time.Second,
		log:        log.With().Str("component", "autosave_worker").Logger(),
	}
}

// Start begins the worker loop and returns once ctx is cancelled and the
// queue has been drained. Call in a goroutine.
func (w *AutosaveWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *AutosaveWorker) processNext(ctx context.Context) {
	result, err := w.rdb.BLPop(ctx, w.pollWait, w.queue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
			sleep(ctx, w.retryDelay)
		}
		return
	}
	if len(result) < 2 {
		return
	}

	ev, ok := w.decode(result[1])
	if !ok {
		return
	}

	if err := w.store.UpsertAnswer(ctx, ev); err != nil {
		w.log.Error().Err(err).
			Str("session_id", ev.SessionID.String()).
			Str("question_id", ev.QuestionID.String()).
			Dur("retry_in", w.retryDelay).
			Msg("Persist error, requeueing")
		w.requeue(result[1])
		sleep(ctx, w.retryDelay)
	}
}

func (w *AutosaveWorker) decode(raw string) (model.AnswerEvent, bool) {
	var ev model.AnswerEvent
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		// Malformed entries would loop forever if requeued.
		w.log.Error().Err(err).Str("payload", raw).Msg("Dropping malformed answer event")
		return ev, false
	}
	return ev, true
}

func (w *AutosaveWorker) requeue(raw string) {
	if err := w.rdb.RPush(context.Background(), w.queue, raw).Err(); err != nil {
		w.log.Error().Err(err).Msg("Requeue failed, answer lost from queue")
	}
}

// drain processes everything left in the queue before shutdown.
func (w *AutosaveWorker) drain(ctx context.Context) {
	drained := 0
	for {
		raw, err := w.rdb.LPop(ctx, w.queue).Result()
		if err != nil {
			break
		}

		ev, ok := w.decode(raw)
		if !ok {
			continue
		}
		if err := w.store.UpsertAnswer(ctx, ev); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			w.requeue(raw)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
