package remindersvc

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/schedule"
)

var nowFunc = time.Now // mockable

// Service emails a daily digest of the upcoming day's active events. Runs on
// the cron spec from the config and is disabled unless a recipient is set.
type Service struct {
	cron    *cron.Cron
	repo    schedule.Repository
	mailSvc core.EmailService
	logger  core.Logger
	conf    *core.Config
}

func NewService(repo schedule.Repository, mailSvc core.EmailService, logger core.Logger, conf *core.Config) *Service {
	return &Service{
		cron:    cron.New(),
		repo:    repo,
		mailSvc: mailSvc,
		logger:  logger,
		conf:    conf,
	}
}

func (s *Service) Start() error {
	if !s.conf.Reminder.Enabled || s.conf.Reminder.Recipient == "" {
		return nil
	}
	if _, err := s.cron.AddFunc(s.conf.Reminder.Spec, s.run); err != nil {
		return errors.Wrap(err, "scheduling reminder digest")
	}
	s.cron.Start()
	s.logger.Info(fmt.Sprintf("reminder digest scheduled: %q", s.conf.Reminder.Spec))
	return nil
}

func (s *Service) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Service) run() {
	if err := s.SendDigest(context.Background()); err != nil {
		s.logger.Error(fmt.Sprintf("sending reminder digest: %v", err), err)
	}
}

// SendDigest mails the active events starting within the next 24 hours.
// Nothing is sent when the window is empty.
func (s *Service) SendDigest(ctx context.Context) error {
	now := nowFunc().UTC()
	instances, err := s.repo.QueryInstancesBetween(ctx, now, now.Add(24*time.Hour))
	if err != nil {
		return errors.Wrap(err, "querying upcoming instances")
	}
	if len(instances) == 0 {
		return nil
	}

	s.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Address: s.conf.Reminder.Recipient}},
		Subject: "Upcoming events",
		BodyStr: digestBody(instances),
	})
	return nil
}

func digestBody(instances []schedule.EventInstance) string {
	body := new(strings.Builder)
	fmt.Fprintf(body, "Events in the next 24 hours: %d\n\n", len(instances))
	for _, inst := range instances {
		title := inst.Title
		if title == "" {
			title = inst.Category
		}
		fmt.Fprintf(
			body, "- %s to %s: %s",
			inst.StartAt.Format("Mon 2006-01-02 15:04"), inst.EndAt.Format("15:04"), title,
		)
		if inst.Location != "" {
			fmt.Fprintf(body, " (%s)", inst.Location)
		}
		body.WriteString("\n")
	}
	return body.String()
}
