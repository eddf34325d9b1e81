// Package queue pulls submission jobs off an SQS queue so other
// services can enqueue judging work without calling this service's
// HTTP surface.
package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/programme-lv/judge/internal/judge"
)

// Worker long-polls one queue and judges each job to completion before
// deleting it. A message whose judging fails stays on the queue and is
// redelivered after its visibility timeout.
type Worker struct {
	client   *sqs.Client
	queueURL string
	svc      *judge.Service
	log      *slog.Logger
}

func NewWorker(client *sqs.Client, queueURL string, svc *judge.Service, log *slog.Logger) *Worker {
	return &Worker{client: client, queueURL: queueURL, svc: svc, log: log}
}

// Run polls until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("submission queue worker started", "queue", w.queueURL)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		output, err := w.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(w.queueURL),
			MaxNumberOfMessages: 1,
			WaitTimeSeconds:     5,
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.log.Error("failed to receive messages", "error", err)
			time.Sleep(1 * time.Second)
			continue
		}

		for _, message := range output.Messages {
			w.handle(ctx, aws.ToString(message.Body), aws.ToString(message.ReceiptHandle))
		}
	}
}

func (w *Worker) handle(ctx context.Context, body, receiptHandle string) {
	var in judge.SubmitInput
	if err := json.Unmarshal([]byte(body), &in); err != nil {
		w.log.Error("failed to decode submission job, dropping", "error", err)
		w.delete(ctx, receiptHandle)
		return
	}

	sub, err := w.svc.Submit(ctx, in)
	if err != nil {
		w.log.Error("failed to judge queued submission",
			"user", in.UserID, "problem", in.ProblemID, "error", err)
		return
	}
	w.log.Info("queued submission judged",
		"submission", sub.ID, "status", sub.Status)
	w.delete(ctx, receiptHandle)
}

func (w *Worker) delete(ctx context.Context, receiptHandle string) {
	_, err := w.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(w.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		w.log.Error("failed to delete message", "error", err)
	}
}
