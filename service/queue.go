// service/queue.go
package service

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"voting-ledger/models"
	"voting-ledger/program"
)

var (
	ErrQueueFull    = errors.New("transaction queue is full")
	ErrQueueStopped = errors.New("transaction queue is stopped")
)

// Submitter executes a single transaction.
type Submitter interface {
	Submit(ctx context.Context, tx *models.Transaction) (*models.Receipt, error)
}

// TransactionQueue hands submitted transactions to a fixed pool of workers
type TransactionQueue struct {
	ledger     Submitter
	requestCh  chan *SubmitRequest
	workers    int
	log        zerolog.Logger
	mu         sync.Mutex
	started    bool
	stopped    bool
	wg         sync.WaitGroup
	shutdownCh chan struct{}
}

// SubmitRequest represents a queued transaction
type SubmitRequest struct {
	Ctx      context.Context
	Tx       *models.Transaction
	ResultCh chan<- *ProcessingResult
}

// ProcessingResult contains the outcome of a queued transaction
type ProcessingResult struct {
	Receipt *models.Receipt
	Err     error
}

func NewTransactionQueue(ledger Submitter, queueSize, workers int, log zerolog.Logger) *TransactionQueue {
	if workers < 1 {
		workers = 1
	}
	return &TransactionQueue{
		ledger:     ledger,
		requestCh:  make(chan *SubmitRequest, queueSize),
		workers:    workers,
		log:        log,
		shutdownCh: make(chan struct{}),
	}
}

// Start launches the workers
func (q *TransactionQueue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.stopped {
		return
	}
	q.started = true

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	q.log.Info().Int("workers", q.workers).Int("capacity", cap(q.requestCh)).Msg("transaction queue started")
}

// Stop waits for in-progress transactions and fails anything still queued
func (q *TransactionQueue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	close(q.shutdownCh)
	q.mu.Unlock()

	q.wg.Wait()
	for {
		select {
		case req := <-q.requestCh:
			reply(req, &ProcessingResult{Err: ErrQueueStopped})
		default:
			q.log.Info().Msg("transaction queue stopped")
			return
		}
	}
}

// Enqueue adds tx to the queue without waiting for it to run. The returned
// channel receives exactly one result.
func (q *TransactionQueue) Enqueue(ctx context.Context, tx *models.Transaction) <-chan *ProcessingResult {
	resultCh := make(chan *ProcessingResult, 1)
	req := &SubmitRequest{Ctx: ctx, Tx: tx, ResultCh: resultCh}

	if tx == nil {
		reply(req, &ProcessingResult{Err: program.Reject(program.CodeInvalidInstruction, "transaction is required")})
		return resultCh
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		reply(req, &ProcessingResult{Err: ErrQueueStopped})
		return resultCh
	}

	select {
	case q.requestCh <- req:
	default:
		q.log.Warn().Str("tx", tx.ID.String()).Msg("transaction queue is full, request dropped")
		reply(req, &ProcessingResult{Err: ErrQueueFull})
	}
	return resultCh
}

// Submit enqueues tx and waits for its result or for ctx to end.
func (q *TransactionQueue) Submit(ctx context.Context, tx *models.Transaction) (*models.Receipt, error) {
	select {
	case res := <-q.Enqueue(ctx, tx):
		return res.Receipt, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *TransactionQueue) worker(id int) {
	defer q.wg.Done()

	for {
		select {
		case <-q.shutdownCh:
			return
		case req := <-q.requestCh:
			if err := req.Ctx.Err(); err != nil {
				reply(req, &ProcessingResult{Err: err})
				continue
			}
			receipt, err := q.ledger.Submit(req.Ctx, req.Tx)
			q.log.Debug().Int("worker", id).Str("tx", req.Tx.ID.String()).Msg("transaction processed")
			reply(req, &ProcessingResult{Receipt: receipt, Err: err})
		}
	}
}

func reply(req *SubmitRequest, res *ProcessingResult) {
	req.ResultCh <- res
	close(req.ResultCh)
}
