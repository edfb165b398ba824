package sweep

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
)

type countingRunner struct{ runs atomic.Int32 }

func (r *countingRunner) Run(context.Context) (Summary, error) {
	r.runs.Add(1)
	return Summary{Tenants: 1}, nil
}

type fakeQueue struct {
	messages chan string
	deleted  atomic.Int32
}

func (q *fakeQueue) ReceiveMessage(ctx context.Context, _ *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	select {
	case <-ctx.Done():
		return &sqs.ReceiveMessageOutput{}, ctx.Err()
	case handle := <-q.messages:
		return &sqs.ReceiveMessageOutput{Messages: []sqstypes.Message{
			{MessageId: aws.String("m1"), ReceiptHandle: aws.String(handle)},
		}}, nil
	}
}

func (q *fakeQueue) DeleteMessage(context.Context, *sqs.DeleteMessageInput, ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	q.deleted.Add(1)
	return &sqs.DeleteMessageOutput{}, nil
}

func TestWorkerRunsOnStartupAndTick(t *testing.T) {
	runner := &countingRunner{}
	w := NewWorker(runner, 30*time.Millisecond, nil, "", nil)

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)

	assert.Eventually(t, func() bool { return runner.runs.Load() >= 2 }, time.Second, 10*time.Millisecond)
	cancel()
	w.Wait()
}

func TestWorkerRunsOnQueueTrigger(t *testing.T) {
	runner := &countingRunner{}
	q := &fakeQueue{messages: make(chan string, 1)}
	w := NewWorker(runner, time.Hour, q, "https://sqs/queue", nil)

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)

	q.messages <- "handle-1"
	assert.Eventually(t, func() bool { return q.deleted.Load() == 1 }, time.Second, 10*time.Millisecond)
	// Startup run plus one queue-triggered run.
	assert.GreaterOrEqual(t, runner.runs.Load(), int32(2))

	cancel()
	w.Wait()
}
