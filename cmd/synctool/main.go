// Package main provides a one-shot sync tool for TagVault repositories.
// It runs a single sync pass over one or all registered repositories and
// prints the reports, without starting the HTTP server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/tagvaultapp/tagvault-server/internal/config"
	"github.com/tagvaultapp/tagvault-server/internal/gitsource"
	"github.com/tagvaultapp/tagvault-server/internal/logger"
	"github.com/tagvaultapp/tagvault-server/internal/search"
	"github.com/tagvaultapp/tagvault-server/internal/store/sqlite"
	"github.com/tagvaultapp/tagvault-server/internal/syncer"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	lg := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		Environment: cfg.App.Environment,
	})

	st, err := sqlite.Open(cfg.Database.Path, lg.Logger)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer st.Close()

	index, err := search.NewIndex(search.Options{
		DataPath: cfg.Sync.DataDir + "/search",
		Logger:   lg.Logger,
	})
	if err != nil {
		log.Fatalf("Failed to open search index: %v", err)
	}
	defer index.Close()

	git, err := gitsource.NewClient(lg.Logger)
	if err != nil {
		log.Fatalf("Failed to create git client: %v", err)
	}

	sy := syncer.New(st, git, index, cfg.Sync, lg.Logger)
	ctx := context.Background()

	// With a repository id argument, sync just that one and print the report.
	if args := flag.Args(); len(args) > 0 {
		report, err := sy.Sync(ctx, args[0], syncer.Options{Force: true})
		if err != nil {
			log.Fatalf("Sync failed: %v", err)
		}
		printReport(report)
		return
	}

	repos, err := st.ListRepositories(ctx)
	if err != nil {
		log.Fatalf("Failed to list repositories: %v", err)
	}
	if len(repos) == 0 {
		fmt.Println("No repositories registered")
		return
	}

	for _, repo := range repos {
		report, err := sy.Sync(ctx, repo.ID, syncer.Options{})
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: sync failed: %v\n", repo.ID, err)
			continue
		}
		printReport(report)
	}
}

func printReport(report *syncer.Report) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Fatalf("Failed to render report: %v", err)
	}
	fmt.Println(string(data))
}
