package async

import (
	"context"
	"time"

	"github.com/joseph-ayodele/idverify/internal/common"
	"github.com/joseph-ayodele/idverify/internal/entity"
	"github.com/joseph-ayodele/idverify/internal/pipeline"
)

// Job is one document waiting for extraction.
type Job struct {
	Document    entity.RawDocument
	Label       string // where the pages came from, for logs and reports
	Debug       bool
	SubmittedAt time.Time
	TraceID     string
}

// Outcome is reported once per job, success or not.
type Outcome struct {
	Job      Job
	Response pipeline.ExtractResponse
	Err      error
	Elapsed  time.Duration
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// Extractor is the part of pipeline.Service the workers need.
type Extractor interface {
	Extract(ctx context.Context, doc entity.RawDocument, opts ...pipeline.ExtractOption) (pipeline.ExtractResponse, error)
}

var ErrQueueClosed = common.NewAppError("QUEUE_CLOSED", "queue is shutting down", common.ErrInvalidInput)
