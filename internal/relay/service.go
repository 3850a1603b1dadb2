package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tuanvumaihuynh/stock-ledger/internal/config"
	"github.com/tuanvumaihuynh/stock-ledger/internal/repository"
	"github.com/tuanvumaihuynh/stock-ledger/internal/storage/db"
	"github.com/tuanvumaihuynh/stock-ledger/internal/storage/mq"
	"github.com/tuanvumaihuynh/stock-ledger/pkg/outbox"
	"github.com/tuanvumaihuynh/stock-ledger/pkg/ptr"
)

// TxRunner runs fn in a transaction that the outbox repository is bound to
// for the duration of one batch.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(db.DB) error) error
}

// Service ships recorded domain events from the outbox to the broker.
type Service struct {
	cfg           config.Relay
	logger        *slog.Logger
	tx            TxRunner
	outboxMsgRepo repository.OutboxMsgRepository
	mqProducer    mq.Producer

	stopChan chan struct{}
}

func NewService(
	cfg config.Relay,
	logger *slog.Logger,
	tx TxRunner,
	outboxMsgRepo repository.OutboxMsgRepository,
	mqProducer mq.Producer,
) *Service {
	return &Service{
		cfg:           cfg,
		logger:        logger.With(slog.String("service", "relay")),
		tx:            tx,
		outboxMsgRepo: outboxMsgRepo,
		mqProducer:    mqProducer,
		stopChan:      make(chan struct{}),
	}
}

type CleanupFunc func()

func (s *Service) Run(ctx context.Context) CleanupFunc {
	ctx, cancel := context.WithCancel(ctx)

	stoppedChan := make(chan struct{})
	go func() {
		defer close(stoppedChan)
		s.run(ctx)
	}()

	return func() {
		close(s.stopChan)
		select {
		case <-stoppedChan:
		case <-time.After(5 * time.Second):
			cancel()
			<-stoppedChan
		}
		cancel()
	}
}

func (s *Service) run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			if _, err := s.relayBatch(ctx); err != nil {
				s.logger.ErrorContext(ctx, "error relaying outbox msgs", slog.Any("error", err))
			}
		}
	}
}

// relayBatch locks one batch of unprocessed messages, produces them and
// marks each one processed, recording the produce error if any.
func (s *Service) relayBatch(ctx context.Context) (int, error) {
	var relayed int
	err := s.tx.WithTx(ctx, func(tx db.DB) error {
		repo := s.outboxMsgRepo.WithDB(tx)

		msgs, err := repo.ListUnprocessedOutboxMsgs(ctx, repository.ListUnprocessedOutboxMsgsParams{
			//nolint:gosec
			BatchSize: int32(s.cfg.BatchSize),
		})
		if err != nil {
			return fmt.Errorf("list unprocessed outbox msgs: %w", err)
		}
		if len(msgs) == 0 {
			return nil
		}

		s.logger.DebugContext(ctx, "relaying outbox msgs", slog.Int("count", len(msgs)))

		items := s.produceAll(ctx, msgs)
		if err := repo.BulkUpdateOutboxMsgs(ctx, repository.BulkUpdateOutboxMsgsParams{Items: items}); err != nil {
			return fmt.Errorf("bulk update outbox msgs: %w", err)
		}

		relayed = len(msgs)
		return nil
	})
	return relayed, err
}

// produceAll produces messages concurrently across partition keys and in
// outbox order within one key.
func (s *Service) produceAll(ctx context.Context, msgs []repository.ListUnprocessedOutboxMsgsResult) []repository.BulkUpdateOutboxMsgsItem {
	var (
		groups = map[string][]repository.ListUnprocessedOutboxMsgsResult{}
		order  []string
	)
	for _, msg := range msgs {
		key := ""
		if msg.PartitionKey != nil {
			key = *msg.PartitionKey
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], msg)
	}

	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		items = make([]repository.BulkUpdateOutboxMsgsItem, 0, len(msgs))
	)
	for _, key := range order {
		group := groups[key]
		wg.Go(func() {
			for _, msg := range group {
				item := repository.BulkUpdateOutboxMsgsItem{ID: msg.ID}
				if err := s.produce(ctx, msg); err != nil {
					s.logger.ErrorContext(ctx, "error producing message",
						slog.String("outbox_msg_id", msg.ID.String()),
						slog.String("topic", msg.Topic),
						slog.Any("error", err),
					)
					item.Error = ptr.New(err.Error())
				}
				mu.Lock()
				items = append(items, item)
				mu.Unlock()
			}
		})
	}
	wg.Wait()

	return items
}

func (s *Service) produce(ctx context.Context, msg repository.ListUnprocessedOutboxMsgsResult) error {
	// continue the trace of the command that recorded the event
	ctx = outbox.ContextFromHeaders(ctx, msg.Headers)

	if err := s.mqProducer.Produce(ctx, mq.ProduceMsg{
		Topic:        msg.Topic,
		Headers:      msg.Headers,
		Payload:      msg.Payload,
		PartitionKey: msg.PartitionKey,
	}); err != nil {
		return fmt.Errorf("produce message: %w", err)
	}
	return nil
}
