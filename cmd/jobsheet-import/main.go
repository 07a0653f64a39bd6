package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/jamesokelly/jobsheet-importer/constants"
	"github.com/jamesokelly/jobsheet-importer/internal/common"
	"github.com/jamesokelly/jobsheet-importer/internal/entity"
	"github.com/jamesokelly/jobsheet-importer/internal/export"
	"github.com/jamesokelly/jobsheet-importer/internal/extract"
	"github.com/jamesokelly/jobsheet-importer/internal/repository"
	"github.com/jamesokelly/jobsheet-importer/internal/session"
	"github.com/jamesokelly/jobsheet-importer/internal/table"
)

func main() {
	var (
		filePath    = flag.String("file", "", "job sheet PDF to import")
		commit      = flag.Bool("commit", false, "apply reconciled actions to the job store")
		resolveDups = flag.Bool("resolve-dups", false, "keep the first row of each duplicate WIP group, skip the rest")
		outDir      = flag.String("out", "", "directory for export artifacts (CSV, parse log, XLSX)")
		listImports = flag.Bool("list-imports", false, "print the import history and exit")
		quiet       = flag.Bool("quiet", false, "suppress progress output")
	)
	flag.Parse()

	// Logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()
	log := logger.Sugar()

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	// Context with signal
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	db, err := repository.Open(ctx, cfg.Database.Path, log)
	if err != nil {
		log.Fatalf("opening job store: %v", err)
	}
	defer repository.Close(db, log)
	if err := repository.HealthCheck(ctx, db, 3*time.Second); err != nil {
		log.Fatalf("job store health failed: %v", err)
	}

	repo := repository.NewSQLRepository(db, log)

	if *listImports {
		printImports(ctx, repo)
		return
	}

	if *filePath == "" {
		if flag.NArg() == 1 {
			*filePath = flag.Arg(0)
		} else {
			fmt.Fprintln(os.Stderr, "usage: jobsheet-import [-commit] [-out dir] <file.pdf>")
			os.Exit(2)
		}
	}

	tmpl := table.DefaultTemplate()
	if cfg.Table.TemplatePath != "" {
		tmpl, err = table.LoadTemplate(cfg.Table.TemplatePath)
		if err != nil {
			log.Fatalf("loading column template: %v", err)
		}
	}

	mgr := session.NewManager(log, repo, extract.NewExtractor(log), tmpl, cfg.Table.RowTolerance, cfg.Scoring)

	var progress session.ProgressFunc
	if !*quiet {
		progress = printProgress
	}
	sess, err := mgr.Begin(progress)
	if err != nil {
		log.Fatalf("starting session: %v", err)
	}

	content, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatalf("reading %s: %v", *filePath, err)
	}

	result, err := sess.Run(ctx, *filePath, content)
	if err != nil {
		log.Fatalf("import failed: %v", err)
	}

	printSummary(result)
	if result.Summary.TotalRows == 0 {
		printLog(result)
	}

	if *outDir != "" {
		if err := writeArtifacts(log, *outDir, *result); err != nil {
			log.Fatalf("writing exports: %v", err)
		}
	}

	if !*commit {
		sess.Discard()
		fmt.Println("preview only; re-run with -commit to apply")
		return
	}

	if *resolveDups {
		if n, err := sess.ResolveDuplicateWIPs(); err != nil {
			log.Fatalf("resolving duplicates: %v", err)
		} else if n > 0 {
			fmt.Printf("skipped %d duplicate row(s)\n", n)
		}
	}
	if err := sess.Commit(ctx); err != nil {
		if errors.Is(err, common.ErrDuplicateWIP) {
			log.Fatalf("commit blocked: %v (re-run with -resolve-dups or edit the batch)", err)
		}
		log.Fatalf("commit failed: %v", err)
	}
	fmt.Println("committed.")
}

func printProgress(p entity.ImportProgress) {
	if p.TotalRows > 0 && p.Stage == constants.StageParse {
		fmt.Printf("\r[%s] row %d/%d", p.Stage, p.CurrentRow, p.TotalRows)
		if p.CurrentRow == p.TotalRows {
			fmt.Println()
		}
		return
	}
	if p.Message != "" {
		fmt.Printf("[%s] %s\n", p.Status, p.Message)
	}
}

func printSummary(res *entity.ImportResult) {
	fmt.Printf("\n%s  (sha256 %.12s…)\n", res.Filename, res.Hash)
	fmt.Printf("rows: %d  valid: %d  invalid: %d  duplicates: %d\n\n",
		res.Summary.TotalRows, res.Summary.ValidRows, res.Summary.InvalidRows, res.Summary.Duplicates)
	for _, row := range res.Rows {
		marker := " "
		if row.Duplicate {
			marker = "!"
		}
		fmt.Printf("%s %-6s %-8s %-7s aws=%-3d %s conf=%.2f [%s]\n",
			marker, row.WIPNumber, row.VehicleReg, row.VHCStatus, row.AWs,
			row.JobDate, row.Confidence, row.Action)
	}
	if len(res.Rows) > 0 {
		fmt.Println()
	}
}

func printLog(res *entity.ImportResult) {
	for _, e := range res.ParseLog {
		if e.RawData != "" {
			fmt.Printf("%-7s %s (raw: %q)\n", e.Level, e.Message, e.RawData)
		} else {
			fmt.Printf("%-7s %s\n", e.Level, e.Message)
		}
	}
}

func printImports(ctx context.Context, repo *repository.SQLRepository) {
	recs, err := repo.List(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "listing imports: %v\n", err)
		os.Exit(1)
	}
	for _, r := range recs {
		fmt.Printf("%s  %-30s rows=%-4d %s\n",
			r.ImportedAt.Format("2006-01-02 15:04"), r.Filename, r.TotalRows, r.Hash[:12])
	}
}

func writeArtifacts(log *zap.SugaredLogger, dir string, res entity.ImportResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	svc := export.NewService(log)

	csvBytes, err := svc.RowsCSV(res)
	if err != nil {
		return err
	}
	logBytes, err := svc.ParseLogJSON(res)
	if err != nil {
		return err
	}
	xlsxBytes, err := svc.RowsXLSX(res)
	if err != nil {
		return err
	}

	for name, data := range map[string][]byte{
		export.CSVFilename(res.Filename):  csvBytes,
		export.LogFilename(res.Filename):  logBytes,
		export.XLSXFilename(res.Filename): xlsxBytes,
	} {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return err
		}
	}
	return nil
}
