package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/mockmate/internal/config"
	"github.com/stemsi/mockmate/internal/model"
)

// AnswerJournal mirrors accepted answers into Redis and queues them for the
// autosave worker.
type AnswerJournal struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewAnswerJournal creates a new AnswerJournal. Journal hashes expire after ttl.
func NewAnswerJournal(rdb *redis.Client, ttl time.Duration) *AnswerJournal {
	return &AnswerJournal{rdb: rdb, ttl: ttl}
}

// RecordAnswer writes the answer to the session hash and enqueues it.
func (j *AnswerJournal) RecordAnswer(ctx context.Context, ev model.AnswerEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal answer: %w", err)
	}

	key := config.CacheKey.SessionAnswersKey(ev.SessionID.String())
	pipe := j.rdb.TxPipeline()
	pipe.HSet(ctx, key, ev.QuestionID.String(), strconv.Itoa(ev.SelectedOption))
	if j.ttl > 0 {
		pipe.Expire(ctx, key, j.ttl)
	}
	pipe.RPush(ctx, config.WorkerKey.PersistAnswersQueue, payload)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("journal answer: %w", err)
	}
	return nil
}

// Answers returns the journaled option per question id of a session.
func (j *AnswerJournal) Answers(ctx context.Context, sessionID string) (map[string]int, error) {
	raw, err := j.rdb.HGetAll(ctx, config.CacheKey.SessionAnswersKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}

	out := make(map[string]int, len(raw))
	for qid, v := range raw {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("journal entry %s: %w", qid, err)
		}
		out[qid] = n
	}
	return out, nil
}
