// Command export writes candidates or the ledger to an xlsx workbook, or
// imports candidates from one.
//
//	export candidates -out candidates.xlsx [-status shortlisted]
//	export ledger -out ledger.xlsx
//	export import -in sheet.xlsx
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"care-ats/internal/aggregator"
	"care-ats/internal/app"
	"care-ats/internal/config"
	"care-ats/internal/dataset"
	"care-ats/internal/logger"
	"care-ats/internal/store"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: export candidates|ledger -out file.xlsx | export import -in file.xlsx")
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	cmd := os.Args[1]

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	configPath := fs.String("config", os.Getenv("CONFIG_PATH"), "path to config YAML file")
	out := fs.String("out", "", "output workbook")
	in := fs.String("in", "", "input workbook")
	status := fs.String("status", "", "only export candidates with this status")
	fs.Parse(os.Args[2:])

	_ = godotenv.Load()
	log := logger.New()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}

	ctx := context.Background()
	db, err := app.OpenStore(ctx, cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("failed to open database")
	}
	defer db.Close()
	st := store.New(db)

	switch cmd {
	case "candidates":
		err = exportCandidates(ctx, st, *out, *status)
	case "ledger":
		err = exportLedger(ctx, st, *out)
	case "import":
		err = importCandidates(ctx, st, *in, cfg.DefaultCountryCode, log)
	default:
		usage()
	}
	if err != nil {
		log.WithError(err).Error(cmd + " failed")
		db.Close()
		os.Exit(1)
	}
}

func create(path string) (*os.File, error) {
	if path == "" {
		return nil, errors.New("-out is required")
	}
	return os.Create(path)
}

func exportCandidates(ctx context.Context, st *store.Store, path, status string) error {
	cands, err := st.ListCandidates(ctx, store.CandidateFilter{Status: status})
	if err != nil {
		return err
	}
	f, err := create(path)
	if err != nil {
		return err
	}
	if err := dataset.ExportCandidates(f, cands); err != nil {
		f.Close()
		return err
	}
	fmt.Printf("wrote %d candidates to %s\n", len(cands), path)
	return f.Close()
}

func exportLedger(ctx context.Context, st *store.Store, path string) error {
	entries, err := st.ListLedger(ctx, "", 0)
	if err != nil {
		return err
	}
	f, err := create(path)
	if err != nil {
		return err
	}
	if err := dataset.ExportLedger(f, entries, aggregator.Summarize(entries)); err != nil {
		f.Close()
		return err
	}
	fmt.Printf("wrote %d ledger entries to %s\n", len(entries), path)
	return f.Close()
}

func importCandidates(ctx context.Context, st *store.Store, path, countryCode string, log *logger.Logger) error {
	if path == "" {
		return errors.New("-in is required")
	}
	cands, skipped, err := dataset.LoadCandidates(path, countryCode)
	if err != nil {
		return err
	}
	for _, s := range skipped {
		log.WithField("row", s.Row).WithField("reason", s.Reason).Warn("row skipped")
	}

	imported := 0
	for i := range cands {
		if err := st.InsertCandidate(ctx, &cands[i]); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				log.WithField("phone", cands[i].Phone).Warn("candidate already exists")
				continue
			}
			return err
		}
		imported++
	}
	fmt.Printf("imported %d of %d rows (%d invalid)\n", imported, len(cands)+len(skipped), len(skipped))
	return nil
}
