// Package worker consumes queued questions, drives the router and
// delivers the answer back to Telegram.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/rs/zerolog"

	"nerdbot/internal/metrics"
	"nerdbot/internal/queue"
	"nerdbot/internal/router"
)

// replyLimit keeps answers inside Telegram's message size cap with
// headroom for the attribution footer.
const replyLimit = 4000

type Worker struct {
	bot           *gotgbot.Bot
	router        *router.Router
	queue         *queue.StreamQueue
	maxJobRetries int
	logger        zerolog.Logger
	metrics       *metrics.Metrics
}

type Config struct {
	Bot           *gotgbot.Bot
	Router        *router.Router
	Queue         *queue.StreamQueue
	MaxJobRetries int
	Logger        zerolog.Logger
	Metrics       *metrics.Metrics
}

func New(cfg Config) *Worker {
	m := cfg.Metrics
	if m == nil {
		m = metrics.Global()
	}
	if cfg.MaxJobRetries < 0 {
		cfg.MaxJobRetries = 0
	}
	return &Worker{
		bot:           cfg.Bot,
		router:        cfg.Router,
		queue:         cfg.Queue,
		maxJobRetries: cfg.MaxJobRetries,
		logger:        cfg.Logger,
		metrics:       m,
	}
}

func (w *Worker) Start(ctx context.Context, concurrency int) error {
	if err := w.queue.EnsureGroup(ctx); err != nil {
		return err
	}
	if concurrency < 1 {
		concurrency = 1
	}

	wg := sync.WaitGroup{}
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			w.consumeLoop(ctx, slot)
		}(i)
	}

	<-ctx.Done()
	wg.Wait()
	return nil
}

func (w *Worker) consumeLoop(ctx context.Context, slot int) {
	log := w.logger.With().Int("slot", slot).Logger()
	for {
		if err := ctx.Err(); err != nil {
			return
		}

		messages, err := w.queue.Read(ctx, 1)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("failed to read queue")
			time.Sleep(1 * time.Second)
			continue
		}
		if len(messages) == 0 {
			continue
		}

		for _, msg := range messages {
			err := w.processJob(ctx, msg.Job)
			if err == nil {
				w.metrics.ProcessedJobs.Inc()
				if ackErr := w.queue.Ack(ctx, msg.ID); ackErr != nil {
					log.Error().Err(ackErr).Str("msg_id", msg.ID).Msg("failed to ack message")
				}
				continue
			}

			w.metrics.FailedJobs.Inc()
			log.Error().Err(err).Str("job_id", msg.Job.JobID).Int("attempt", msg.Job.Attempts).Msg("job failed")

			if msg.Job.Attempts < w.maxJobRetries {
				msg.Job.Attempts++
				if _, enqueueErr := w.queue.Enqueue(ctx, msg.Job); enqueueErr != nil {
					log.Error().Err(enqueueErr).Str("job_id", msg.Job.JobID).Msg("failed to re-enqueue failed job")
					continue
				}
				if ackErr := w.queue.Ack(ctx, msg.ID); ackErr != nil {
					log.Error().Err(ackErr).Str("msg_id", msg.ID).Msg("failed to ack after re-enqueue")
				}
				continue
			}

			_ = w.send(ctx, msg.Job.ChatID, msg.Job.MessageID, "❌ An error occurred while processing your request. Please try again.", false)
			if ackErr := w.queue.Ack(ctx, msg.ID); ackErr != nil {
				log.Error().Err(ackErr).Str("msg_id", msg.ID).Msg("failed to ack terminal failed message")
			}
		}
	}
}

// processJob runs one question through the router. Only transport
// failures return an error and trigger the retry path; refusals and
// provider failures are terminal and reported to the user as-is.
func (w *Worker) processJob(ctx context.Context, job queue.AskJob) error {
	_, _ = w.bot.SendChatActionWithContext(ctx, job.ChatID, "typing", nil)

	answer := w.router.Ask(ctx, router.Ask{
		UserID:    job.UserID,
		ChatID:    job.ChatID,
		MessageID: job.MessageID,
		ChatType:  job.ChatType,
		Username:  job.Username,
		Question:  job.Question,
	})

	if !answer.OK {
		if answer.Text == "" {
			return nil
		}
		return w.send(ctx, job.ChatID, job.MessageID, answer.Text, false)
	}

	text := truncate(answer.Text, replyLimit)
	sent, err := w.sendMarkdown(ctx, job.ChatID, job.MessageID, text)
	if err != nil {
		return fmt.Errorf("send telegram response: %w", err)
	}
	answer.CommitAssistantTurn(ctx, sent.MessageId)
	return nil
}

func (w *Worker) send(ctx context.Context, chatID, replyTo int64, text string, markdown bool) error {
	opts := &gotgbot.SendMessageOpts{}
	if replyTo > 0 {
		opts.ReplyParameters = &gotgbot.ReplyParameters{MessageId: replyTo}
	}
	if markdown {
		opts.ParseMode = "Markdown"
	}
	_, err := w.bot.SendMessageWithContext(ctx, chatID, text, opts)
	return err
}

// sendMarkdown tries Markdown first and falls back to plain text when
// Telegram rejects the entities.
func (w *Worker) sendMarkdown(ctx context.Context, chatID, replyTo int64, text string) (*gotgbot.Message, error) {
	opts := &gotgbot.SendMessageOpts{ParseMode: "Markdown"}
	if replyTo > 0 {
		opts.ReplyParameters = &gotgbot.ReplyParameters{MessageId: replyTo}
	}
	if sent, err := w.bot.SendMessageWithContext(ctx, chatID, text, opts); err == nil {
		return sent, nil
	}
	plain := &gotgbot.SendMessageOpts{}
	if replyTo > 0 {
		plain.ReplyParameters = &gotgbot.ReplyParameters{MessageId: replyTo}
	}
	return w.bot.SendMessageWithContext(ctx, chatID, text, plain)
}

func truncate(text string, limit int) string {
	r := []rune(text)
	if len(r) <= limit {
		return text
	}
	return string(r[:limit])
}
