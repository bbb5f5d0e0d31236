package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finsight/internal/advisor"
	"github.com/dvloznov/finsight/internal/aggregate"
	"github.com/dvloznov/finsight/internal/backend"
	"github.com/dvloznov/finsight/internal/config"
	"github.com/dvloznov/finsight/internal/domain"
	infraBQ "github.com/dvloznov/finsight/internal/infra/bigquery"
	"github.com/dvloznov/finsight/internal/logger"
	"github.com/dvloznov/finsight/internal/persistence"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

func main() {
	cfg := config.Load()
	log := logger.NewWithOptions(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Out: os.Stderr})

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "dashboard":
		runDashboard(cfg, log)
	case "report":
		runReport(cfg, log)
	case "transactions":
		runTransactions(cfg, log)
	case "advise":
		runAdvise(cfg, log)
	case "horoscope":
		runHoroscope(cfg, log)
	case "export-bigquery":
		runExportBigQuery(cfg, log)
	case "exports":
		runListExports(cfg, log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Finsight CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  dashboard        Show balances, this month's totals and recent transactions")
	fmt.Println("  report           Show the expense breakdown and month-over-month totals")
	fmt.Println("  transactions     List transactions, optionally filtered")
	fmt.Println("  advise           Ask the AI advisor about the current finances")
	fmt.Println("  horoscope        Get today's financial horoscope for a zodiac sign")
	fmt.Println("  export-bigquery  Export the saved ledger to BigQuery")
	fmt.Println("  exports          List recent BigQuery exports")
	fmt.Println("  help             Show this help message")
	fmt.Println("\nData commands read the durable store selected by STORE_BACKEND;")
	fmt.Println("pass -demo to use the built-in demo data instead.")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// loadSnapshot returns the demo fixtures or the last saved snapshot.
func loadSnapshot(ctx context.Context, cfg *config.Config, log zerolog.Logger, demo bool) domain.Snapshot {
	if demo {
		return domain.DemoSnapshot(civil.DateOf(time.Now()))
	}

	store, err := backend.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("Failed to open durable store")
	}
	defer store.Close()

	return persistence.New(store, log).Load(ctx)
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "encode: %v\n", err)
		os.Exit(1)
	}
}

func runDashboard(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("dashboard", flag.ExitOnError)
	demo := fs.Bool("demo", false, "Use demo data")
	asJSON := fs.Bool("json", false, "Print JSON")
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	snap := loadSnapshot(ctx, cfg, log, *demo)
	dash := aggregate.BuildDashboard(snap, time.Now())
	if *asJSON {
		printJSON(dash)
		return
	}

	fmt.Println("\n=== Dashboard ===")
	fmt.Printf("Total balance:   %s\n", dash.TotalBalance.StringFixed(0))
	fmt.Printf("Monthly income:  %s\n", dash.MonthlyIncome.StringFixed(0))
	fmt.Printf("Monthly expense: %s\n", dash.MonthlyExpense.StringFixed(0))
	fmt.Printf("Accounts:        %d\n", dash.AccountCount)

	fmt.Printf("\n=== Accounts (%d) ===\n", len(snap.Accounts))
	for _, a := range snap.Accounts {
		fmt.Printf("  %-20s %-12s %12s\n", a.Name, a.Type, a.Balance.StringFixed(0))
	}

	fmt.Printf("\n=== Recent transactions (%d) ===\n", len(dash.Recent))
	printTransactions(snap.Accounts, dash.Recent)
}

func runReport(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	demo := fs.Bool("demo", false, "Use demo data")
	asJSON := fs.Bool("json", false, "Print JSON")
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	report := aggregate.BuildReport(loadSnapshot(ctx, cfg, log, *demo), domain.DefaultCategories, time.Now())
	if *asJSON {
		printJSON(report)
		return
	}

	fmt.Println("\n=== Expenses by category ===")
	if len(report.Categories) == 0 {
		fmt.Println("  (no expenses)")
	}
	for _, c := range report.Categories {
		fmt.Printf("  %s %-6s %12s\n", c.Icon, c.Name, c.Value.StringFixed(0))
	}

	fmt.Println("\n=== Income vs expense ===")
	for _, m := range report.Monthly {
		fmt.Printf("  %04d-%02d  income %12s  expense %12s\n", m.Year, int(m.Month), m.Income.StringFixed(0), m.Expense.StringFixed(0))
	}
	fmt.Println()
}

func runTransactions(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("transactions", flag.ExitOnError)
	demo := fs.Bool("demo", false, "Use demo data")
	typ := fs.String("type", "ALL", "ALL, INCOME or EXPENSE")
	query := fs.String("q", "", "Search note and category")
	fs.Parse(os.Args[2:])

	filter, ok := aggregate.ParseTypeFilter(*typ)
	if !ok {
		log.Fatal().Str("type", *typ).Msg("Error: --type must be ALL, INCOME or EXPENSE")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	snap := loadSnapshot(ctx, cfg, log, *demo)
	matched := aggregate.FilterTransactions(snap.Transactions, filter, *query)
	if len(matched) == 0 {
		fmt.Println("No transactions found.")
		return
	}
	fmt.Printf("\n=== Transactions (%d) ===\n", len(matched))
	printTransactions(snap.Accounts, matched)
}

func printTransactions(accounts []domain.Account, txns []domain.Transaction) {
	for i, tx := range txns {
		fmt.Printf("\n%d. %s\n", i+1, tx.Note)
		fmt.Printf("   Date:     %s\n", tx.Date)
		fmt.Printf("   Amount:   %s (%s)\n", tx.Signed().StringFixed(0), tx.Type)
		fmt.Printf("   Category: %s\n", tx.Category)
		fmt.Printf("   Account:  %s\n", aggregate.AccountName(accounts, tx.AccountID))
	}
	fmt.Println()
}

func runAdvise(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("advise", flag.ExitOnError)
	demo := fs.Bool("demo", false, "Use demo data")
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	snap := loadSnapshot(ctx, cfg, log, *demo)
	adv := advisor.New(ctx, cfg.APIKey, cfg.GeminiModel, log)
	res := adv.RequestAdvice(ctx, snap)

	fmt.Println("\n=== AI advice ===")
	fmt.Printf("Health score: %d/100\n", res.HealthScore)
	fmt.Printf("Summary:      %s\n", res.Summary)
	for i, tip := range res.Tips {
		fmt.Printf("  %d. %s\n", i+1, tip)
	}
	fmt.Println()
}

func runHoroscope(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("horoscope", flag.ExitOnError)
	signName := fs.String("sign", "", "Zodiac sign name, e.g. 牡羊座 (required)")
	fs.Parse(os.Args[2:])

	sign, err := advisor.LookupSign(*signName)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Known signs:")
		for _, z := range domain.ZodiacSigns {
			fmt.Fprintf(os.Stderr, "  %s %s (%s)\n", z.Icon, z.Name, z.Range)
		}
		log.Fatal().Err(err).Str("sign", *signName).Msg("Error: --sign must be one of the known signs")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	res := advisor.New(ctx, cfg.APIKey, cfg.GeminiModel, log).RequestFortune(ctx, sign)

	fmt.Printf("\n=== %s %s ===\n", sign.Icon, res.Sign)
	fmt.Printf("Fortune score: %d/100\n", res.FortuneScore)
	fmt.Printf("Overview:      %s\n", res.Overview)
	fmt.Printf("Lucky colour:  %s\n", res.LuckyColor)
	fmt.Printf("Lucky number:  %s\n", res.LuckyNumber)
	fmt.Printf("Do:            %s\n", res.Do)
	fmt.Printf("Don't:         %s\n", res.Dont)
	fmt.Println()
}

func bigQueryOptions(cfg *config.Config) []option.ClientOption {
	if cfg.GCSCredentialsFile != "" {
		return []option.ClientOption{option.WithCredentialsFile(cfg.GCSCredentialsFile)}
	}
	return nil
}

func runExportBigQuery(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("export-bigquery", flag.ExitOnError)
	project := fs.String("project", cfg.BigQueryProject, "GCP project ID (or set BIGQUERY_PROJECT)")
	dataset := fs.String("dataset", cfg.BigQueryDataset, "BigQuery dataset ID")
	demo := fs.Bool("demo", false, "Export demo data")
	fs.Parse(os.Args[2:])

	if *project == "" {
		log.Fatal().Msg("Error: --project is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	snap := loadSnapshot(ctx, cfg, log, *demo)

	exporter, err := infraBQ.NewExporter(ctx, *project, *dataset, log, bigQueryOptions(cfg)...)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery exporter")
	}
	defer exporter.Close()

	res, err := exporter.ExportSnapshot(ctx, snap)
	if err != nil {
		log.Fatal().Err(err).Msg("Export failed")
	}

	fmt.Printf("Exported %d accounts and %d transactions as %s\n", res.Accounts, res.Transactions, res.ExportID)
}

func runListExports(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("exports", flag.ExitOnError)
	project := fs.String("project", cfg.BigQueryProject, "GCP project ID (or set BIGQUERY_PROJECT)")
	dataset := fs.String("dataset", cfg.BigQueryDataset, "BigQuery dataset ID")
	limit := fs.Int("limit", 20, "Maximum exports to list")
	fs.Parse(os.Args[2:])

	if *project == "" {
		log.Fatal().Msg("Error: --project is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	exporter, err := infraBQ.NewExporter(ctx, *project, *dataset, log, bigQueryOptions(cfg)...)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery exporter")
	}
	defer exporter.Close()

	rows, err := exporter.ListExports(ctx, *limit)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list exports")
	}

	fmt.Printf("\n=== Exports (%d) ===\n", len(rows))
	for _, r := range rows {
		total := "-"
		if r.TotalBalance != nil {
			total = r.TotalBalance.FloatString(2)
		}
		fmt.Printf("  %s  %s  accounts=%d transactions=%d total=%s\n",
			r.ExportedTS.Format(time.RFC3339), r.ExportID, r.AccountCount, r.TransactionCount, total)
	}
	fmt.Println()
}
