package notifier

import (
	"context"
	"time"

	"coitrack/internal/logger"
	"coitrack/internal/ports"
)

// LogNotifier writes events to the log instead of delivering them anywhere.
// Stands in until an email/webhook sink is wired up.
type LogNotifier struct{ Log *logger.Logger }

func (n LogNotifier) Notify(ctx context.Context, event ports.Event) error {
	n.Log.Info("notify", "event_type", event.Type, "recipient", event.RecipientRole, "certificate_id", event.CertificateID)
	return nil
}

// Run starts dispatcher goroutines that claim queued outbox events and hand
// them to the Notifier. Delivery is fire-and-forget, at most one attempt: a
// failure is logged and the event marked failed, never retried and never
// surfaced to the transition that queued it.
func Run(ctx context.Context, repo ports.OutboxRepository, sink ports.Notifier, concurrency int, pollInterval time.Duration, log *logger.Logger) {
	if concurrency < 1 {
		return
	}
	log = log.With("worker", "notifier")
	eventsCh := make(chan ports.Event, concurrency)

	// claim loop
	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				close(eventsCh)
				return
			case <-ticker.C:
				for {
					event, found, err := repo.ClaimNext(ctx)
					if err != nil {
						if ctx.Err() == nil {
							log.Error("outbox claim error", "error", err)
						}
						break
					}
					if !found {
						break
					}
					eventsCh <- event
				}
			}
		}
	}()

	for i := 0; i < concurrency; i++ {
		go func() {
			for event := range eventsCh {
				Dispatch(ctx, repo, sink, event, log)
			}
		}()
	}
}

// Dispatch delivers one claimed event and settles its outbox row.
func Dispatch(ctx context.Context, repo ports.OutboxRepository, sink ports.Notifier, event ports.Event, log *logger.Logger) {
	if err := sink.Notify(ctx, event); err != nil {
		log.Error("notification failed", "event_id", event.ID, "event_type", event.Type, "error", err)
		if markErr := repo.MarkFailed(ctx, event.ID, err.Error()); markErr != nil {
			log.Error("mark failed error", "event_id", event.ID, "error", markErr)
		}
		return
	}
	if err := repo.MarkDispatched(ctx, event.ID); err != nil {
		log.Error("mark dispatched error", "event_id", event.ID, "error", err)
	}
	log.Debug("notification dispatched", "event_id", event.ID, "event_type", event.Type, "recipient", event.RecipientRole)
}
