package sweep

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/pipewise/pipeline-engine/pkg/logging"
)

// TriggerQueue is the slice of SQS the worker polls for external sweep
// triggers. Message bodies are ignored; a message is just a "run now".
type TriggerQueue interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Worker runs the orchestrator on a fixed cadence and, when a queue is
// configured, additionally on external trigger messages. Overlap between
// the two paths is safe; the dedupe window absorbs it.
type Worker struct {
	orchestrator SweepRunner
	interval     time.Duration
	queue        TriggerQueue
	queueURL     string
	logger       *logging.Logger

	wg sync.WaitGroup
}

// SweepRunner runs one full sweep.
type SweepRunner interface {
	Run(ctx context.Context) (Summary, error)
}

// NewWorker creates a sweep worker. queue may be nil (ticker only).
func NewWorker(orchestrator SweepRunner, interval time.Duration, queue TriggerQueue, queueURL string, logger *logging.Logger) *Worker {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Worker{
		orchestrator: orchestrator,
		interval:     interval,
		queue:        queue,
		queueURL:     queueURL,
		logger:       logger,
	}
}

// Start launches the ticker loop and, if configured, the queue poller.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.tickLoop(ctx)

	if w.queue != nil && w.queueURL != "" {
		w.wg.Add(1)
		go w.pollLoop(ctx)
	}
}

// Wait blocks until all loops have exited.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) tickLoop(ctx context.Context) {
	defer w.wg.Done()

	// First run immediately; a fresh deploy should not wait a full tick.
	w.run(ctx, "startup")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.run(ctx, "ticker")
		}
	}
}

func (w *Worker) pollLoop(ctx context.Context) {
	defer w.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}
		out, err := w.queue.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(w.queueURL),
			MaxNumberOfMessages: 1,
			WaitTimeSeconds:     20,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Warn("sweep: trigger queue receive failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for _, msg := range out.Messages {
			w.run(ctx, "queue")
			_, err := w.queue.DeleteMessage(ctx, &sqs.DeleteMessageInput{
				QueueUrl:      aws.String(w.queueURL),
				ReceiptHandle: msg.ReceiptHandle,
			})
			if err != nil {
				w.logger.Warn("sweep: trigger message delete failed", "error", err)
			}
		}
	}
}

func (w *Worker) run(ctx context.Context, source string) {
	summary, err := w.orchestrator.Run(ctx)
	if err != nil {
		w.logger.Error("sweep: run failed", "source", source, "error", err)
		return
	}
	w.logger.Info("sweep: run complete",
		"source", source,
		"tenants", summary.Tenants,
		"failed", summary.Failed,
		"created", summary.Created,
	)
}
