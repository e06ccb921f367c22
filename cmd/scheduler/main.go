package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/collection-ledger/internal/cache"
	"github.com/segyhp/collection-ledger/internal/config"
	"github.com/segyhp/collection-ledger/internal/database"
	"github.com/segyhp/collection-ledger/internal/logger"
	"github.com/segyhp/collection-ledger/internal/repository"
	"github.com/segyhp/collection-ledger/internal/service"
	"github.com/segyhp/collection-ledger/pkg/utils"
)

type jobs struct {
	reports *service.ReportService
	loc     *time.Location
	log     *logrus.Logger
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	log := logger.New(cfg.Logging)
	log.Info("Starting ledger scheduler...")
	ctx := context.Background()

	db, err := database.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	var summaryCache service.Cache
	if cfg.Redis.URL != "" {
		client, err := cache.NewClient(ctx, cfg.Redis.URL)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, summaries will not be refreshed in cache")
		} else {
			redisCache := cache.NewRedisCache(client)
			defer redisCache.Close()
			summaryCache = redisCache
		}
	}

	loc := cfg.GetSchedulerLocation()
	j := &jobs{
		reports: service.NewReportService(repository.NewPostgresStore(db), summaryCache, cfg.GetCacheTTL(), cfg.LedgerSettings(), log),
		loc:     loc,
		log:     log,
	}

	// Initialize cron scheduler
	c := cron.New(cron.WithSeconds(), cron.WithLocation(loc))

	if _, err := c.AddFunc(cfg.Scheduler.OverdueSpec, j.overdueDigest); err != nil {
		log.Fatalf("Error scheduling overdue digest job: %v", err)
	}
	if _, err := c.AddFunc(cfg.Scheduler.WeeklySpec, j.weeklyCollected); err != nil {
		log.Fatalf("Error scheduling weekly collection job: %v", err)
	}

	// Start the scheduler
	c.Start()
	log.WithFields(logrus.Fields{
		"overdue_spec": cfg.Scheduler.OverdueSpec,
		"weekly_spec":  cfg.Scheduler.WeeklySpec,
		"timezone":     loc.String(),
	}).Info("Scheduler started successfully")

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down scheduler...")
	<-c.Stop().Done()
	log.Info("Scheduler stopped")
}

// today is the calendar date in the scheduler's time zone
func (j *jobs) today() time.Time {
	return utils.TruncateToDate(time.Now().In(j.loc))
}

// overdueDigest logs what every field agent has overdue and refreshes their cached summary
func (j *jobs) overdueDigest() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	users, err := j.reports.UsersWithActiveLoans(ctx)
	if err != nil {
		j.log.WithError(err).Error("Overdue digest: failed to list users")
		return
	}

	today := j.today()
	for _, userID := range users {
		overdue, err := j.reports.OverdueAsOf(ctx, userID, today)
		if err != nil {
			j.log.WithError(err).WithField("user_id", userID).Error("Overdue digest failed")
			continue
		}

		amount := decimal.Zero
		loans := make(map[string]bool)
		for _, d := range overdue {
			amount = amount.Add(d.Owed())
			loans[d.LoanID.String()] = true
		}

		j.log.WithFields(logrus.Fields{
			"user_id":      userID,
			"as_of":        today.Format(utils.DateLayout),
			"installments": len(overdue),
			"loans":        len(loans),
			"amount":       amount.String(),
		}).Info("Overdue digest")

		if _, err := j.reports.RefreshSummary(ctx, userID); err != nil {
			j.log.WithError(err).WithField("user_id", userID).Warn("Failed to refresh portfolio summary")
		}
	}
}

// weeklyCollected logs what every field agent collected over the past seven days
func (j *jobs) weeklyCollected() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	users, err := j.reports.UsersWithActiveLoans(ctx)
	if err != nil {
		j.log.WithError(err).Error("Weekly collection: failed to list users")
		return
	}

	end := j.today()
	start := end.AddDate(0, 0, -6)
	for _, userID := range users {
		collected, err := j.reports.CollectedInRange(ctx, userID, start, end)
		if err != nil {
			j.log.WithError(err).WithField("user_id", userID).Error("Weekly collection summary failed")
			continue
		}

		amount := decimal.Zero
		for _, d := range collected {
			amount = amount.Add(d.AmountPaid)
		}

		j.log.WithFields(logrus.Fields{
			"user_id":      userID,
			"start":        start.Format(utils.DateLayout),
			"end":          end.Format(utils.DateLayout),
			"installments": len(collected),
			"amount":       amount.String(),
		}).Info("Weekly collection summary")
	}
}
