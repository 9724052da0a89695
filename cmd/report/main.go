package main

import (
	"flag"
	"fmt"
	"log"
	"path/filepath"

	"github.com/morph4d/morph4d/internal/report"
	"github.com/morph4d/morph4d/internal/runlog"
	"github.com/morph4d/morph4d/internal/version"
)

var (
	dbFile      = flag.String("db", "morph4d.db", "Path to the run log database")
	runID       = flag.String("run", "", "Run id to report on (default: most recent)")
	outDir      = flag.String("out", "report", "Output directory for plots and the dashboard")
	listRuns    = flag.Bool("list", false, "List recorded runs and exit")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("morph4d-report %s\n", version.String())
		return
	}

	// Schema migrations run against the database and exit.
	if args := flag.Args(); len(args) > 0 && args[0] == "migrate" {
		runlog.RunMigrateCommand(args[1:], *dbFile)
		return
	}

	db, err := runlog.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("open run log: %v", err)
	}
	defer db.Close()

	if *listRuns {
		runs, err := db.ListRuns()
		if err != nil {
			log.Fatalf("list runs: %v", err)
		}
		if len(runs) == 0 {
			fmt.Println("no runs recorded")
			return
		}
		for _, r := range runs {
			state := "running"
			if r.FinishedAt != nil {
				state = "finished"
			}
			fmt.Printf("%s  motion=%s  %s\n", r.ID, r.Motion, state)
		}
		return
	}

	var run *runlog.Run
	if *runID == "" {
		run, err = db.LatestRun()
	} else {
		run, err = db.GetRun(*runID)
	}
	if err != nil {
		log.Fatalf("select run: %v", err)
	}

	names, err := db.MetricNames(run.ID)
	if err != nil {
		log.Fatalf("metric names: %v", err)
	}
	series := make(map[string][]runlog.SeriesPoint, len(names))
	for _, name := range names {
		pts, err := db.MetricSeries(run.ID, name)
		if err != nil {
			log.Fatalf("metric %s: %v", name, err)
		}
		series[name] = pts
	}

	count, err := report.WritePlots(*outDir, series)
	if err != nil {
		log.Fatalf("write plots: %v", err)
	}
	log.Printf("wrote %d plots for run %s to %s", count, run.ID, *outDir)

	dashboard := filepath.Join(*outDir, "dashboard.html")
	if err := report.WriteDashboard(dashboard, run, series); err != nil {
		log.Fatalf("write dashboard: %v", err)
	}
	log.Printf("wrote dashboard to %s", dashboard)
}
