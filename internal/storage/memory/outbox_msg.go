package memory

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/tuanvumaihuynh/stock-ledger/internal/repository"
	"github.com/tuanvumaihuynh/stock-ledger/internal/storage/db"
)

type outboxMsg struct {
	repository.ListUnprocessedOutboxMsgsResult
	CreatedAt   time.Time
	ProcessedAt *time.Time
	Error       *string
}

// WithDB returns the store itself; there is no transaction to bind to.
func (s *Store) WithDB(_ db.DB) repository.OutboxMsgRepository {
	return s
}

// WithTx runs fn with a nil DB; repositories of this store ignore it.
func (s *Store) WithTx(_ context.Context, fn func(db.DB) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(nil)
}

func (s *Store) CreateOutboxMsg(_ context.Context, params repository.CreateOutboxMsgParams) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate uuid v7: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.outbox = append(s.outbox, outboxMsg{
		ListUnprocessedOutboxMsgsResult: repository.ListUnprocessedOutboxMsgsResult{
			ID:           id,
			Topic:        params.Topic,
			Headers:      maps.Clone(params.Headers),
			Payload:      append([]byte(nil), params.Payload...),
			PartitionKey: params.PartitionKey,
		},
		CreatedAt: time.Now(),
	})
	return nil
}

func (s *Store) ListUnprocessedOutboxMsgs(_ context.Context, params repository.ListUnprocessedOutboxMsgsParams) ([]repository.ListUnprocessedOutboxMsgsResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := []repository.ListUnprocessedOutboxMsgsResult{}
	for _, msg := range s.outbox {
		if msg.ProcessedAt != nil {
			continue
		}
		if params.BatchSize > 0 && len(results) >= int(params.BatchSize) {
			break
		}
		results = append(results, msg.ListUnprocessedOutboxMsgsResult)
	}
	return results, nil
}

func (s *Store) BulkUpdateOutboxMsgs(_ context.Context, params repository.BulkUpdateOutboxMsgsParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	byID := make(map[uuid.UUID]*string, len(params.Items))
	for _, item := range params.Items {
		byID[item.ID] = item.Error
	}
	for i, msg := range s.outbox {
		errMsg, ok := byID[msg.ID]
		if !ok {
			continue
		}
		s.outbox[i].ProcessedAt = &now
		s.outbox[i].Error = errMsg
	}
	return nil
}

// OutboxTopics returns the topic of every message in insertion order.
func (s *Store) OutboxTopics() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	topics := make([]string, 0, len(s.outbox))
	for _, msg := range s.outbox {
		topics = append(topics, msg.Topic)
	}
	return topics
}

// OutboxState is the delivery state of one outbox message.
type OutboxState struct {
	Topic     string
	Processed bool
	Error     *string
}

// OutboxStates returns the delivery state of every message in insertion order.
func (s *Store) OutboxStates() []OutboxState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	states := make([]OutboxState, 0, len(s.outbox))
	for _, msg := range s.outbox {
		states = append(states, OutboxState{
			Topic:     msg.Topic,
			Processed: msg.ProcessedAt != nil,
			Error:     msg.Error,
		})
	}
	return states
}
