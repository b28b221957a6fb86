package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/smaehq/smae-backend/internal/domain"
	"github.com/smaehq/smae-backend/internal/logger"
	"github.com/smaehq/smae-backend/internal/platform/sendgrid"
	"github.com/smaehq/smae-backend/internal/repos"
	"github.com/smaehq/smae-backend/internal/types"
)

// Mailer is the slice of the sendgrid client the notifier needs.
type Mailer interface {
	Send(ctx context.Context, req sendgrid.SendEmailRequest) error
}

type NotifierService interface {
	StartWorker(ctx context.Context, interval time.Duration)
	SweepOnce(ctx context.Context) (int, error)
}

type notifierService struct {
	log            *logger.Logger
	validationRepo repos.ValidationRepo
	mailer         Mailer
	clock          domain.Clock
}

func NewNotifierService(log *logger.Logger, validationRepo repos.ValidationRepo, mailer Mailer, clock domain.Clock) NotifierService {
	return &notifierService{
		log:            log.With("service", "NotifierService"),
		validationRepo: validationRepo,
		mailer:         mailer,
		clock:          clock,
	}
}

// StartWorker runs the cooldown sweep on a ticker until the context ends.
func (ns *notifierService) StartWorker(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				ns.log.Info("Notification worker stopped")
				return
			case <-ticker.C:
				sent, err := ns.SweepOnce(ctx)
				if err != nil {
					ns.log.Error("Notification sweep failed", "error", err)
				} else if sent > 0 {
					ns.log.Info("Notification sweep complete", "sent", sent)
				}
			}
		}
	}()
}

// SweepOnce finds skills whose post-Autonomy cooldown has elapsed and emails
// their owners that the Consolidation attempt is open. Each validation is
// marked notified so the reminder fires once.
func (ns *notifierService) SweepOnce(ctx context.Context) (int, error) {
	cutoff := ns.clock.Now().Add(-domain.ConsolidationHours * time.Hour)
	due, err := ns.validationRepo.ListCooldownElapsed(ctx, nil, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list elapsed cooldowns: %w", err)
	}
	if len(due) == 0 {
		return 0, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	var sent atomic.Int64
	for _, validation := range due {
		validation := validation
		g.Go(func() error {
			if err := ns.notifyOne(gctx, validation); err != nil {
				ns.log.Warn("Failed to notify", "validation_id", validation.ID, "error", err)
				return nil
			}
			sent.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(sent.Load()), err
	}
	return int(sent.Load()), nil
}

func (ns *notifierService) notifyOne(ctx context.Context, validation *types.Validation) error {
	if validation.Skill == nil || validation.Skill.User == nil {
		return fmt.Errorf("validation %s missing skill or user", validation.ID)
	}
	user := validation.Skill.User
	skill := validation.Skill

	err := ns.mailer.Send(ctx, sendgrid.SendEmailRequest{
		To:      sendgrid.EmailAddress{Email: user.Email, Name: user.Name},
		Subject: fmt.Sprintf("Cooldown complete: %s is ready for level 4", skill.Name),
		TextBody: fmt.Sprintf(
			"The 48 hour consolidation window for %q has passed.\n\n"+
				"If you can still perform it without help, submit your level 4 validation now. "+
				"If not, be honest and keep practicing.\n", skill.Name),
	})
	if err != nil {
		return err
	}
	return ns.validationRepo.UpdateFields(ctx, nil, validation.ID, map[string]interface{}{
		"notified": true,
	})
}
