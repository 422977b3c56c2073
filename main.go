package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"leadharvest/config"
	"leadharvest/gmaps"
	"leadharvest/httputil"
	"leadharvest/logging"
	"leadharvest/models"
	"leadharvest/scheduler"
	"leadharvest/storage"
	"leadharvest/website"
	"leadharvest/workers"
)

var (
	submitPreset   = flag.String("submit", "", "Submit a search preset by name and exit")
	pollNow        = flag.Bool("poll", false, "Run one polling pass and exit")
	scrapeWebsites = flag.Bool("scrape-websites", false, "Scrape one batch of lead websites and exit")
	deleteJob      = flag.String("delete", "", "Delete a remote job by external ID and exit")
	syncJobs       = flag.Bool("sync", false, "Adopt jobs known to the API but missing locally and exit")
	validateCSV    = flag.String("validate", "", "Dry-run validate a result CSV and exit")
	migrateOnly    = flag.Bool("migrate", false, "Run database migrations and exit")
	rollbackOnly   = flag.Bool("rollback", false, "Roll back the last database migration and exit")
	showStats      = flag.Bool("stats", false, "Print website extraction stats and exit")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logFile, err := logging.Setup(cfg.LogPath)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting leadharvest...")

	if *migrateOnly {
		if err := storage.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsPath); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Migrations applied")
		return
	}

	if *rollbackOnly {
		if err := storage.RollbackMigrations(cfg.Database.URL, cfg.Database.MigrationsPath); err != nil {
			log.Fatalf("Rollback failed: %v", err)
		}
		log.Println("Last migration rolled back")
		return
	}

	if *validateCSV != "" {
		report, err := gmaps.ValidateFile(*validateCSV)
		if err != nil {
			log.Fatalf("Validation failed: %v", err)
		}
		log.Printf("Validated %s: %d rows, %d valid, %d errors, %d warnings",
			*validateCSV, report.TotalRows, report.ValidRows, len(report.Errors), len(report.Warnings))
		for _, msg := range report.Errors {
			log.Printf("  ERROR %s", msg)
		}
		for _, msg := range report.Warnings {
			log.Printf("  WARN  %s", msg)
		}
		return
	}

	log.Printf("Loaded %d search presets", len(cfg.Presets))
	for name := range cfg.Presets {
		log.Printf("  - %s", name)
	}

	clients := httputil.NewClients(cfg)

	ctx := context.Background()

	pgStore, err := storage.NewPostgresStore(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer pgStore.Close()
	log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.Database.URL))

	apiClient := gmaps.NewClient(cfg.API.BaseURL, clients.API)
	orchestrator := gmaps.NewOrchestrator(apiClient, pgStore, cfg.CSVDir)
	scraper := website.NewScraper(pgStore, clients.Scraping, cfg.Website.Delay)

	// One-shot commands
	switch {
	case *submitPreset != "":
		preset, ok := cfg.Presets[*submitPreset]
		if !ok {
			log.Fatalf("Unknown search preset: %s", *submitPreset)
		}
		job, err := orchestrator.Submit(ctx, preset, "cli")
		if err != nil {
			log.Fatalf("Submit failed: %v", err)
		}
		log.Printf("Job submitted: %s (external ID %s)", job.ID, job.ExternalID)
		return
	case *deleteJob != "":
		if err := apiClient.DeleteJob(ctx, *deleteJob); err != nil {
			log.Fatalf("Delete failed: %v", err)
		}
		log.Printf("Job %s deleted from API", *deleteJob)
		return
	case *syncJobs:
		stats, err := orchestrator.SyncJobs(ctx)
		if err != nil {
			log.Fatalf("Sync failed: %v", err)
		}
		log.Printf("Sync complete: %d seen, %d adopted, %d imported (%d leads), %d errors",
			stats.Seen, stats.Created, stats.JobsImported, stats.LeadsImported, stats.Errors)
		return
	case *pollNow:
		stats, err := orchestrator.ProcessDueJobs(ctx, cfg.Poller.RefreshMinAge)
		if err != nil {
			log.Fatalf("Poll failed: %v", err)
		}
		log.Printf("Poll complete: %d checked, %d imported (%d leads), %d errors",
			stats.JobsChecked, stats.JobsImported, stats.LeadsImported, stats.Errors)
		return
	case *scrapeWebsites:
		worker := workers.NewWebsiteWorker(pgStore, scraper, cfg.Website.BatchSize)
		stats := worker.ProcessBatch(ctx, cfg.Website.BatchSize)
		log.Printf("Scrape complete: %d processed, %d failed, %d emails found",
			stats.Processed, stats.Failed, stats.EmailsFound)
		return
	case *showStats:
		stats, err := pgStore.GetExtractionStats(ctx)
		if err != nil {
			log.Fatalf("Stats failed: %v", err)
		}
		log.Printf("Leads with website: %d, scraped: %d", stats.LeadsWithWebsite, stats.Scraped)
		for status, count := range stats.ByStatus {
			log.Printf("  %s: %d", status, count)
		}
		log.Printf("Extractions with emails: %d (%d addresses total)", stats.WithEmails, stats.TotalEmails)
		return
	}

	// Daemon mode
	opsStore, err := storage.NewSQLiteStore(cfg.Database.OpsPath)
	if err != nil {
		log.Fatalf("Failed to open SQLite: %v", err)
	}
	defer opsStore.Close()
	log.Printf("Ops database: %s", cfg.Database.OpsPath)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	websiteWorker := workers.NewWebsiteWorker(pgStore, scraper, cfg.Website.BatchSize)
	websiteWorker.SetLogger(func(level models.LogLevel, source, message string) {
		opsStore.Log(nil, level, message, source)
	})

	sched := scheduler.New(cfg, orchestrator, opsStore)
	sched.SetWorkers(websiteWorker)

	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	go websiteWorker.Run(ctx, cfg.Website.Interval)
	log.Println("Website worker started")

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	cancel()
	sched.Stop()
	log.Println("Goodbye!")
}

// maskConnectionString masks the password in a connection string for logging.
func maskConnectionString(connStr string) string {
	start := 0
	for i := 0; i < len(connStr)-3; i++ {
		if connStr[i:i+3] == "://" {
			start = i + 3
			break
		}
	}
	if start == 0 {
		return connStr
	}

	colonIdx := -1
	atIdx := -1
	for i := start; i < len(connStr); i++ {
		if connStr[i] == ':' && colonIdx == -1 {
			colonIdx = i
		}
		if connStr[i] == '@' {
			atIdx = i
			break
		}
	}

	if colonIdx > 0 && atIdx > colonIdx {
		return connStr[:colonIdx+1] + "****" + connStr[atIdx:]
	}
	return connStr
}
