// Package consumerWorker drains the notification queue and delivers emails.
// Mail problems are logged and dropped: a notification is never worth
// blocking the queue for.
package consumerWorker

import (
	"context"
	"encoding/json"

	"github.com/wb-go/wbf/zlog"

	"symposium/internal/mailer"
	"symposium/internal/notify"
	"symposium/internal/rabbit"
)

type Reader struct {
	rmq    *rabbit.Client
	mail   *mailer.Mailer
	done   chan struct{}
	cancel context.CancelFunc
}

func NewReader(rmq *rabbit.Client, mail *mailer.Mailer) *Reader {
	return &Reader{
		rmq:  rmq,
		mail: mail,
		done: make(chan struct{}),
	}
}

func (r *Reader) Start(ctx context.Context) {
	cctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	zlog.Logger.Info().Msg("notification worker started")

	go func() {
		defer close(r.done)

		handler := func(body []byte) error {
			var msg notify.EmailMessage
			if err := json.Unmarshal(body, &msg); err != nil {
				zlog.Logger.Error().
					Err(err).
					Msgf("Failed to unmarshal message: %s", string(body))
				return err
			}

			if err := r.mail.Send(msg.To, msg.Subject, msg.Body); err != nil {
				// Already logged by the mailer; dropped, not retried, so a
				// bad address cannot poison the queue.
				return nil
			}
			return nil
		}

		if err := r.rmq.Consume(handler); err != nil {
			zlog.Logger.Error().Err(err).Msg("Failed to start consuming")
			return
		}

		<-cctx.Done()
		zlog.Logger.Info().Msg("notification worker stopped by context")
	}()
}

func (r *Reader) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
}
