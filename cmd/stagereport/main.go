package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"sales-order-service/config"
	"sales-order-service/internal/pipeline"
	"sales-order-service/internal/store"
	"sales-order-service/internal/util"

	"go.uber.org/zap"
)

type stageCount struct {
	Stage    string
	Orders   int
	Duration time.Duration
}

type counter interface {
	CountStageOrders(ctx context.Context, stage pipeline.Stage) (int, error)
}

func main() {
	var (
		only    = flag.String("stage", "", "report a single stage by name")
		timeout = flag.Duration("timeout", 30*time.Second, "overall query timeout")
	)
	flag.Parse()

	cfg := config.Load()
	if err := util.InitLogger(cfg.Server.Env, util.ServiceName+"-stagereport"); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()
	logger := util.GetLogger()

	stages := pipeline.Stages
	if *only != "" {
		stage, ok := pipeline.StageByName(*only)
		if !ok {
			logger.Fatal("Unknown stage", zap.String("stage", *only))
		}
		stages = []pipeline.Stage{stage}
	}

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	counts, err := countStages(ctx, db, stages)
	if err != nil {
		logger.Fatal("Failed to count stage orders", zap.Error(err))
	}
	printReport(os.Stdout, counts)
}

func countStages(ctx context.Context, db counter, stages []pipeline.Stage) ([]stageCount, error) {
	counts := make([]stageCount, 0, len(stages))
	for _, stage := range stages {
		start := time.Now()
		n, err := db.CountStageOrders(ctx, stage)
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", stage.Name, err)
		}
		counts = append(counts, stageCount{Stage: stage.Name, Orders: n, Duration: time.Since(start)})
	}
	return counts, nil
}

func printReport(w io.Writer, counts []stageCount) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "STAGE\tORDERS\tQUERY\n")
	for _, c := range counts {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", c.Stage, c.Orders, c.Duration.Round(time.Millisecond))
	}
	tw.Flush()
}
