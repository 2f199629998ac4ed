package cron

import (
	"context"

	"github.com/momentum-app/momentum-server/internal/jobs"
	"github.com/momentum-app/momentum-server/internal/services"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// StartCronJobs wires the background maintenance jobs and starts the
// scheduler.
func StartCronJobs(sweeper *jobs.ChallengeSweeper, notificationService *services.NotificationService) *cron.Cron {
	c := cron.New()

	// Expired challenge reconciliation
	c.AddFunc("@hourly", func() {
		if err := sweeper.Run(context.Background()); err != nil {
			logrus.WithError(err).Error("Challenge sweep failed")
		}
	})

	// Purge notifications past their TTL
	c.AddFunc("0 3 * * *", func() {
		if err := notificationService.DeleteExpiredNotifications(context.Background()); err != nil {
			logrus.WithError(err).Error("Notification cleanup failed")
		}
	})

	c.Start()
	return c
}
