package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/EMayer0602/support-resistance-12-sub000/internal/config"
	"github.com/EMayer0602/support-resistance-12-sub000/internal/model"
)

// SearchJob is one instrument/direction grid scan. The pipeline is pure, so
// jobs run with zero coordination between workers.
type SearchJob struct {
	Series     model.Series
	Instrument config.InstrumentConfig
	Direction  model.Direction
	PastRange  config.WindowRange
	TradeRange config.WindowRange
}

type WorkerPool struct {
	jobQueue    chan SearchJob
	results     chan SearchResult
	workerCount int
	logger      *zap.Logger
}

func NewWorkerPool(workerCount int, bufferSize int, logger *zap.Logger) *WorkerPool {
	return &WorkerPool{
		jobQueue:    make(chan SearchJob, bufferSize),
		results:     make(chan SearchResult, bufferSize),
		workerCount: workerCount,
		logger:      logger,
	}
}

func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.workerCount; i++ {
		go p.worker(ctx, i)
	}
	p.logger.Info("started worker pool", zap.Int("workers", p.workerCount))
}

func (p *WorkerPool) Submit(job SearchJob) {
	select {
	case p.jobQueue <- job:
	default:
		p.logger.Warn("worker pool job queue full, dropping job",
			zap.String("symbol", job.Instrument.Symbol))
	}
}

// Results exposes the completed scans.
func (p *WorkerPool) Results() <-chan SearchResult {
	return p.results
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			p.process(id, job)
		}
	}
}

func (p *WorkerPool) process(workerID int, job SearchJob) {
	result := SearchWindows(job.Series, job.Instrument, job.Direction, job.PastRange, job.TradeRange)
	p.logger.Debug("search job done",
		zap.Int("worker_id", workerID),
		zap.String("symbol", job.Instrument.Symbol),
		zap.Int("past_window", result.PastWindow),
		zap.Int("trade_window", result.TradeWindow),
	)
	p.results <- result
}
