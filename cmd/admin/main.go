package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/DaerkerOfc/Klowsky/internal/adapter/storage"
	"github.com/DaerkerOfc/Klowsky/internal/core/config"
	"github.com/DaerkerOfc/Klowsky/internal/core/domain"
	"github.com/DaerkerOfc/Klowsky/internal/core/ledger"
	"github.com/DaerkerOfc/Klowsky/internal/core/security"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if len(os.Args) < 2 {
		slog.Error("Expected subcommand: credit | report")
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "credit":
		err = runCredit(os.Args[2:])
	case "report":
		err = runReport(os.Args[2:])
	default:
		err = fmt.Errorf("unknown command %q", os.Args[1])
	}
	if err != nil {
		slog.Error("Command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

// openEngine connects to DATABASE_URL; the memory store has nothing to
// administer from outside the server process.
func openEngine(ctx context.Context) (*ledger.Engine, func(), error) {
	cfg := config.LoadConfig()
	if cfg.UsesMemoryStore() {
		return nil, nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := storage.ConnectDB(ctx, cfg.DatabaseURL, 2)
	if err != nil {
		return nil, nil, err
	}
	engine := ledger.NewEngine(storage.NewPostgresStore(db), security.RandomGenerator{}, slog.Default())
	return engine, db.Close, nil
}

func runCredit(args []string) error {
	cmd := flag.NewFlagSet("credit", flag.ExitOnError)
	key := cmd.String("key", "", "Account key (required)")
	rawAmount := cmd.String("amount", "", "Amount, e.g. 1.000,00 (required)")
	if err := cmd.Parse(args); err != nil {
		return err
	}
	if *key == "" || *rawAmount == "" {
		return fmt.Errorf("-key and -amount are required")
	}

	amount, err := domain.ParseAmount(*rawAmount)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	engine, closeDB, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	acc, err := engine.Credit(ctx, *key, amount)
	if err != nil {
		return err
	}
	slog.Info("Credit applied", "key", acc.Key, "amount", domain.FormatAmount(amount), "balance", domain.FormatAmount(acc.Balance))
	return nil
}

func runReport(args []string) error {
	cmd := flag.NewFlagSet("report", flag.ExitOnError)
	key := cmd.String("key", "", "Account key (required)")
	limit := cmd.Int("limit", ledger.MaxHistoryLimit, "Maximum rows")
	out := cmd.String("out", "", "Output file (default <key>_report.csv)")
	if err := cmd.Parse(args); err != nil {
		return err
	}
	if *key == "" {
		return fmt.Errorf("-key is required")
	}
	if *out == "" {
		*out = *key + "_report.csv"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	engine, closeDB, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	history, err := engine.History(ctx, *key, *limit)
	if err != nil {
		return err
	}

	file, err := os.Create(*out)
	if err != nil {
		return err
	}
	defer file.Close()

	bw := bufio.NewWriter(file)
	if err := writeReport(bw, history); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}

	slog.Info("Report generated", "rows", len(history), "file", *out)
	return nil
}

func writeReport(w io.Writer, history []domain.TransferRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"ID", "Seq", "From", "To", "Amount", "CreatedAt"}); err != nil {
		return err
	}
	for _, rec := range history {
		row := []string{
			rec.ID,
			fmt.Sprint(rec.Seq),
			rec.SourceKey,
			rec.DestKey,
			domain.FormatAmount(rec.Amount),
			rec.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
