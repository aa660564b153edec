// taskhive-janitor runs the periodic maintenance jobs: expiring stale
// invitations, purging old audit entries, and deleting expired tokens.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/taskhive/taskhive/pkg/audit"
	"github.com/taskhive/taskhive/pkg/auth"
	"github.com/taskhive/taskhive/pkg/config"
	"github.com/taskhive/taskhive/pkg/rbac"
	"github.com/taskhive/taskhive/pkg/storage"
)

func main() {
	once := flag.Bool("once", false, "run all maintenance jobs once and exit")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(os.Getenv("TASKHIVE_LOG_LEVEL")); err == nil {
		log.SetLevel(level)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		log.WithError(err).Fatal("failed to open database")
	}
	defer db.Close()

	j := &janitor{
		log:           log,
		rbacStore:     rbac.NewStore(db),
		auditor:       audit.NewDBLogger(db, nil),
		tokens:        auth.NewTokenManager(db, cfg.Auth.TokenTTL),
		invitationTTL: cfg.Maintenance.InvitationTTL,
		retention:     cfg.Maintenance.AuditRetention,
	}

	if *once {
		j.runAll(ctx)
		return
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.Maintenance.Schedule, func() { j.runAll(ctx) }); err != nil {
		log.WithError(err).Fatalf("invalid maintenance schedule %q", cfg.Maintenance.Schedule)
	}
	c.Start()
	log.WithField("schedule", cfg.Maintenance.Schedule).Info("janitor started")

	<-ctx.Done()
	log.Info("shutting down")
	<-c.Stop().Done()
}

type janitor struct {
	log           *logrus.Logger
	rbacStore     *rbac.Store
	auditor       *audit.DBLogger
	tokens        *auth.TokenManager
	invitationTTL time.Duration
	retention     time.Duration
}

func (j *janitor) runAll(ctx context.Context) {
	now := time.Now().UTC()
	j.expireInvitations(ctx, now)
	j.purgeAuditEntries(ctx, now)
	j.purgeTokens(ctx, now)
}

// expireInvitations deletes pending invitations older than the TTL. The
// invited user can always be re-invited.
func (j *janitor) expireInvitations(ctx context.Context, now time.Time) {
	cutoff := now.Add(-j.invitationTTL)
	n, err := j.rbacStore.ExpirePendingInvitations(ctx, cutoff)
	if err != nil {
		j.log.WithError(err).Error("failed to expire invitations")
		return
	}
	j.log.WithFields(logrus.Fields{"removed": n, "cutoff": cutoff}).Info("expired pending invitations")
}

func (j *janitor) purgeAuditEntries(ctx context.Context, now time.Time) {
	cutoff := now.Add(-j.retention)
	n, err := j.auditor.Purge(ctx, cutoff)
	if err != nil {
		j.log.WithError(err).Error("failed to purge audit entries")
		return
	}
	j.log.WithFields(logrus.Fields{"removed": n, "cutoff": cutoff}).Info("purged audit entries")
}

func (j *janitor) purgeTokens(ctx context.Context, now time.Time) {
	n, err := j.tokens.PurgeExpiredTokens(ctx, now)
	if err != nil {
		j.log.WithError(err).Error("failed to purge expired tokens")
		return
	}
	j.log.WithField("removed", n).Info("purged expired tokens")
}
