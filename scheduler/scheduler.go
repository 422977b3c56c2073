package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"leadharvest/config"
	"leadharvest/gmaps"
	"leadharvest/models"
	"leadharvest/storage"
)

// Triggerable allows workers to be triggered manually
type Triggerable interface {
	Trigger()
}

// Scheduler runs the periodic polling passes, records them as runs in the
// ops database, and relays externally enqueued commands to the daemon.
type Scheduler struct {
	cfg          *config.Config
	orchestrator *gmaps.Orchestrator
	ops          *storage.SQLiteStore
	cron         *cron.Cron
	ticker       *time.Ticker
	stopCh       chan struct{}

	paused atomic.Bool

	websiteWorker Triggerable
}

func New(cfg *config.Config, orchestrator *gmaps.Orchestrator, ops *storage.SQLiteStore) *Scheduler {
	return &Scheduler{
		cfg:          cfg,
		orchestrator: orchestrator,
		ops:          ops,
		cron:         cron.New(),
		stopCh:       make(chan struct{}),
	}
}

// SetWorkers registers background workers for manual triggering
func (s *Scheduler) SetWorkers(website Triggerable) {
	s.websiteWorker = website
}

func (s *Scheduler) Start(ctx context.Context) error {
	go s.pollCommands(ctx)

	if s.cfg.Scheduler.Cron != "" {
		log.Printf("Starting scheduler with cron: %s", s.cfg.Scheduler.Cron)
		_, err := s.cron.AddFunc(s.cfg.Scheduler.Cron, func() {
			s.runPass(ctx)
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
	} else if s.cfg.Scheduler.Interval > 0 {
		log.Printf("Starting scheduler with interval: %s", s.cfg.Scheduler.Interval)
		s.ticker = time.NewTicker(s.cfg.Scheduler.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					s.runPass(ctx)
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		log.Println("No schedule configured, daemon will only respond to commands")
	}

	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}

// TriggerNow runs one polling pass immediately.
func (s *Scheduler) TriggerNow(ctx context.Context) error {
	return s.runPollingPass(ctx, s.cfg.Poller.MinJobAge)
}

func (s *Scheduler) runPass(ctx context.Context) {
	if s.paused.Load() {
		log.Println("Scheduler paused, skipping pass")
		return
	}
	if err := s.runPollingPass(ctx, s.cfg.Poller.MinJobAge); err != nil {
		log.Printf("Scheduled run error: %v", err)
	}
}

// runPollingPass executes one pass over due jobs and records it as a run.
func (s *Scheduler) runPollingPass(ctx context.Context, minAge time.Duration) error {
	run := &models.PollRun{
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}
	runID, err := s.ops.CreateRun(run)
	if err != nil {
		// Run without bookkeeping rather than skipping the pass.
		log.Printf("Error creating run record: %v", err)
	}
	run.ID = runID

	stats, err := s.orchestrator.ProcessDueJobs(ctx, minAge)
	now := time.Now()
	run.FinishedAt = &now

	if err != nil {
		run.Status = models.RunStatusFailed
		s.ops.Log(&run.ID, models.LogLevelError, err.Error(), "poller")
	} else {
		run.Status = models.RunStatusCompleted
		run.JobsChecked = stats.JobsChecked
		run.JobsImported = stats.JobsImported
		run.LeadsImported = stats.LeadsImported
		run.ErrorsCount = stats.Errors
		if stats.Errors > 0 {
			s.ops.Log(&run.ID, models.LogLevelWarn,
				fmt.Sprintf("pass finished with %d errors", stats.Errors), "poller")
		}
	}

	if runID > 0 {
		if uerr := s.ops.UpdateRun(run); uerr != nil {
			log.Printf("Error updating run record: %v", uerr)
		}
	}

	return err
}

func (s *Scheduler) pollCommands(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cmds, err := s.ops.GetPendingCommands()
			if err != nil {
				log.Printf("Error getting commands: %v", err)
				continue
			}

			for _, cmd := range cmds {
				log.Printf("Processing command: %s", cmd.Command)
				if err := s.handleCommand(ctx, &cmd); err != nil {
					log.Printf("Command error: %v", err)
				}
				if err := s.ops.MarkCommandProcessed(cmd.ID); err != nil {
					log.Printf("Error marking command processed: %v", err)
				}
			}
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) handleCommand(ctx context.Context, cmd *models.Command) error {
	switch cmd.Command {
	case models.CmdPollNow:
		// Commands are deliberate, so due jobs are refreshed with the
		// shorter on-demand age gate.
		return s.runPollingPass(ctx, s.cfg.Poller.RefreshMinAge)
	case models.CmdScrapeWebsites:
		if s.websiteWorker != nil {
			s.websiteWorker.Trigger()
			log.Println("Website worker triggered via command")
		}
		return nil
	case models.CmdPause:
		s.paused.Store(true)
		log.Println("Scheduler paused")
		return nil
	case models.CmdResume:
		s.paused.Store(false)
		log.Println("Scheduler resumed")
		return nil
	default:
		return fmt.Errorf("unknown command: %s", cmd.Command)
	}
}
