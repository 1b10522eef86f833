// Command dodgy-report builds one stock report from the terminal:
//
//	dodgy-report [-config file] TSLA MSFT AAPL
//
// Each argument goes through the same ticker checks as the web form. The
// report is printed to stdout; logs go to stderr.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/bobmcallan/dodgy-dave/internal/app"
	"github.com/bobmcallan/dodgy-dave/internal/common"
	"github.com/bobmcallan/dodgy-dave/internal/config"
	"github.com/bobmcallan/dodgy-dave/internal/models"
	"github.com/bobmcallan/dodgy-dave/internal/workflow"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

type configPaths []string

func (c *configPaths) String() string { return fmt.Sprintf("%v", *c) }

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run returns the process exit code: 0 for a report, 1 for a failed
// generation and 2 for usage or configuration problems.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("dodgy-report", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var files configPaths
	fs.Var(&files, "config", "Configuration file path (can be specified multiple times)")
	fs.Var(&files, "c", "Configuration file path (shorthand)")
	level := fs.String("log-level", "", "Log level (overrides config)")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: dodgy-report [-config file] TICKER [TICKER...]")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	cfg, err := config.LoadFromFiles(files...)
	if err != nil {
		fmt.Fprintf(stderr, "failed to load configuration: %v\n", err)
		return 2
	}
	if *level != "" {
		cfg.Logging.Level = *level
	}
	if issues := cfg.Validate(); len(issues) > 0 {
		for _, issue := range issues {
			fmt.Fprintf(stderr, "config: %s\n", issue)
		}
		return 2
	}

	logLevel := cfg.Logging.Level
	if logLevel == "" {
		logLevel = "warn"
	}
	logger := common.NewLoggerWithOutput(logLevel, stderr)

	wf, err := app.NewWorkflow(cfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 2
	}

	s := models.NewSession(uuid.New().String(), cfg.Report.HistoryPrompt, time.Now(), cfg.SessionTTL())
	for _, arg := range fs.Args() {
		if err := workflow.SubmitTicker(s, arg); err != nil {
			fmt.Fprintf(stderr, "%s: %s\n", arg, s.Error)
		}
	}
	if len(s.Tickers) == 0 {
		return 2
	}

	fmt.Fprintf(stderr, "Querying Stocks API for %v...\n", s.Tickers)

	if err := wf.Generate(ctx, s); err != nil {
		fmt.Fprintln(stderr, s.Error)
		return 1
	}

	fmt.Fprintln(stdout, "Your Report")
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, s.Report)
	return 0
}
