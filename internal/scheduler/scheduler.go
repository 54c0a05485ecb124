package scheduler

import (
	"context"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"

	"emitenwatch/internal/usecase/watchlist"
)

// Scheduler runs the background cache refresh on a cron cadence so that
// cached watchlist data stays warm without user-triggered syncs.
type Scheduler struct {
	Cron      *cron.Cron
	Watchlist *watchlist.Service
	Ctx       context.Context
}

// New creates a new Scheduler.
func New(ctx context.Context, watchlistService *watchlist.Service) *Scheduler {
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds()),
		Watchlist: watchlistService,
		Ctx:       ctx,
	}
}

// Register registers the refresh task. An empty spec disables it.
func (s *Scheduler) Register(refreshCron string) error {
	if refreshCron == "" {
		return nil
	}
	if _, err := s.Cron.AddFunc(refreshCron, s.refreshAll); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.Cron.Stop()
	log.Println("[INFO] scheduler stopped")
}

func (s *Scheduler) refreshAll() {
	log.Println("[INFO] running background refresh")

	groups, err := s.Watchlist.GetGroups(s.Ctx, true)
	if err != nil {
		log.Printf("[ERROR] refresh groups: %v", err)
		return
	}
	if groups.Warning != "" {
		// Upstream is down; forced item syncs would only fall back too.
		log.Printf("[WARN] refresh skipped item sync: %s", groups.Warning)
		return
	}

	for _, g := range groups.Groups {
		if _, err := s.Watchlist.GetItems(s.Ctx, g.ID, true); err != nil {
			log.Printf("[ERROR] refresh items for group %d: %v", g.ID, err)
		}
	}
}
