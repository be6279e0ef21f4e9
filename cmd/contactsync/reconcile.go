package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/contact-sync/internal/cli"
	"github.com/Veraticus/contact-sync/internal/common"
	"github.com/Veraticus/contact-sync/internal/config"
	"github.com/Veraticus/contact-sync/internal/engine"
	"github.com/Veraticus/contact-sync/internal/export"
	"github.com/Veraticus/contact-sync/internal/importer"
	"github.com/Veraticus/contact-sync/internal/model"
	"github.com/Veraticus/contact-sync/internal/registry"
	"github.com/Veraticus/contact-sync/internal/service"
	"github.com/Veraticus/contact-sync/internal/sheets"
	"github.com/Veraticus/contact-sync/internal/storage"
)

var (
	errInterrupted = errors.New("reconciliation interrupted")
	errDryRun      = errors.New("dry run: identities are not created")
)

const resumeHint = "Decisions so far are saved. Run the same command again to resume."

type reconcileOptions struct {
	File           string
	SheetID        string
	Range          string
	DefaultAction  string
	Output         string
	NonInteractive bool
	ExportSheet    bool
	DryRun         bool
	NoCheckpoint   bool
}

// reconcileEnv holds what a run talks to, so tests can swap the terminal
// and the Sheets API.
type reconcileEnv struct {
	store     *storage.SQLiteStorage
	in        io.Reader
	out       io.Writer
	logger    *slog.Logger
	newSheets func(ctx context.Context, cfg sheets.Config) (sheets.API, error)
}

func reconcileCmd() *cobra.Command {
	var opts reconcileOptions

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile a customer spreadsheet against the registry",
		Long: `Group the spreadsheet rows by customer and match every group against the
registry. Groups that match unambiguously are linked. The rest are shown one
at a time so you can keep the registry data, keep the imported data, type the
correct values, or register a new customer.

Decisions are saved as you make them. If you stop part way, running the same
command on the same data picks up where you left off.`,
		Example: `  # Reconcile a CSV export interactively
  contactsync reconcile --file customers.csv --output reconciled.csv

  # Read from Google Sheets and write the result back to a new tab
  contactsync reconcile --sheet-id 1AbC... --range "Customers!A:F" --export-sheet

  # Unattended run that keeps imported data for every conflict
  contactsync reconcile --file customers.csv --non-interactive --default-action use_imported`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			env := &reconcileEnv{
				store:     store,
				in:        cmd.InOrStdin(),
				out:       cmd.OutOrStdout(),
				logger:    slog.Default(),
				newSheets: sheets.NewAPI,
			}
			return env.run(ctx, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "CSV file to reconcile")
	cmd.Flags().StringVar(&opts.SheetID, "sheet-id", "", "Google Sheets spreadsheet ID to reconcile")
	cmd.Flags().StringVar(&opts.Range, "range", "", "A1 range to read from the spreadsheet (default: sheets.range)")
	cmd.Flags().String("auto-accept", "", "Link similar names at or above this tier without asking (high, medium, low)")
	cmd.Flags().String("skip-policy", "", "Defaults for skipped conflicts (registry_if_matched, imported)")
	cmd.Flags().BoolVar(&opts.NonInteractive, "non-interactive", false, "Resolve every conflict with --default-action instead of asking")
	cmd.Flags().StringVar(&opts.DefaultAction, "default-action", model.ActionUseImported.String(),
		"Action for --non-interactive (use_imported, keep_registry, create_identity)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "Write the reconciled records to this CSV file")
	cmd.Flags().BoolVar(&opts.ExportSheet, "export-sheet", false, "Write the reconciled records to Google Sheets")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Reconcile without changing the registry or saving results")
	cmd.Flags().BoolVar(&opts.NoCheckpoint, "no-checkpoint", false, "Skip the automatic database checkpoint")

	_ = viper.BindPFlag("reconcile.auto_accept_tier", cmd.Flags().Lookup("auto-accept"))
	_ = viper.BindPFlag("reconcile.skip_policy", cmd.Flags().Lookup("skip-policy"))

	cmd.MarkFlagsMutuallyExclusive("file", "sheet-id")
	cmd.MarkFlagsOneRequired("file", "sheet-id")

	return cmd
}

func (e *reconcileEnv) run(ctx context.Context, opts reconcileOptions) error {
	rc, err := config.LoadReconcileConfig()
	if err != nil {
		return err
	}

	var batchAction model.Action
	if opts.NonInteractive {
		if batchAction, err = parseDefaultAction(opts.DefaultAction); err != nil {
			return err
		}
	}

	records, source, err := e.load(ctx, opts)
	if err != nil {
		return err
	}
	fingerprint := importer.Fingerprint(records)

	var reg service.Registry = e.store
	if opts.DryRun {
		reg = dryRunRegistry{e.store}
	} else if !opts.NoCheckpoint {
		e.checkpoint(ctx)
	}

	cache := registry.NewCache(reg, registry.Config{
		TTL:        rc.CacheTTL,
		StaleGrace: rc.StaleGrace,
		Retry:      service.RetryOptions{MaxAttempts: rc.RetryAttempts},
	}, e.logger)

	reconciler := engine.NewWithConfig(cache, engine.Config{
		SkipPolicy:     rc.SkipPolicy,
		AutoAcceptTier: rc.AutoAcceptTier,
	}, e.logger)

	session, err := reconciler.Start(ctx, records)
	if err != nil {
		return err
	}

	var saved *service.Session
	if !opts.DryRun {
		if saved, err = e.resume(ctx, session, source, fingerprint); err != nil {
			return err
		}
	}

	pending := session.Pending()
	e.printf("%s %d records, %d linked automatically, %d conflicts to resolve\n",
		cli.ContactIcon, len(records), session.AutoLinked(), len(pending))

	if len(pending) > 0 {
		if opts.NonInteractive {
			for _, f := range session.BatchResolve(ctx, batchAction, nil) {
				e.logger.Warn("Default action rejected, skip default applies",
					"conflict", f.Index,
					"action", batchAction.String(),
					"error", f.Err)
			}
		} else if err := e.interact(ctx, session, len(pending), rc.CountryCode, opts.DryRun); err != nil {
			return err
		}
	}

	result, err := session.Finalize()
	if err != nil {
		return err
	}

	if saved != nil {
		if err := e.store.SaveReconciledRecords(ctx, saved.ID, result.Records); err != nil {
			return err
		}
		if err := e.store.CompleteSession(ctx, saved.ID); err != nil {
			return err
		}
	}

	fmt.Fprintln(e.out, cli.RenderSummary(result.Summary, result.Errors))

	if opts.Output != "" {
		if err := writeOutput(opts.Output, result.Records, rc.CountryCode); err != nil {
			return err
		}
		e.printf("%s Wrote %d records to %s\n", cli.SuccessStyle.Render(cli.SuccessIcon), len(result.Records), opts.Output)
	}

	if opts.ExportSheet {
		id, err := e.exportSheet(ctx, result)
		if err != nil {
			return err
		}
		e.printf("%s Exported to https://docs.google.com/spreadsheets/d/%s\n", cli.SuccessStyle.Render(cli.SuccessIcon), id)
	}
	return nil
}

// load reads the batch and names its source for the session.
func (e *reconcileEnv) load(ctx context.Context, opts reconcileOptions) ([]model.ImportRecord, string, error) {
	if opts.File != "" {
		path := config.ExpandPath(opts.File)
		f, err := os.Open(path)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open %s: %w", opts.File, err)
		}
		defer func() { _ = f.Close() }()

		records, err := importer.ReadCSV(ctx, f)
		if err != nil {
			return nil, "", err
		}
		return records, "file:" + path, nil
	}

	if opts.SheetID == "" {
		return nil, "", common.NewValidationError("source", "either --file or --sheet-id is required")
	}

	cfg, err := config.LoadSheetsConfig()
	if err != nil {
		return nil, "", fmt.Errorf("invalid sheets configuration: %w", err)
	}
	api, err := e.newSheets(ctx, *cfg)
	if err != nil {
		return nil, "", err
	}

	readRange := opts.Range
	if readRange == "" {
		readRange = cfg.ReadRange
	}
	records, err := sheets.NewReader(api, *cfg, e.logger).ReadRows(ctx, opts.SheetID, readRange)
	if err != nil {
		return nil, "", err
	}
	return records, "sheet:" + opts.SheetID + "!" + readRange, nil
}

// resume opens the batch's unfinished session, or a new one, replays its
// decisions and records new ones as they are made.
func (e *reconcileEnv) resume(ctx context.Context, session *engine.Session, source, fingerprint string) (*service.Session, error) {
	saved, err := e.store.GetSessionByFingerprint(ctx, fingerprint)
	switch {
	case errors.Is(err, common.ErrNotFound):
		if saved, err = e.store.CreateSession(ctx, source, fingerprint); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		decisions, err := e.store.GetResolutions(ctx, saved.ID)
		if err != nil {
			return nil, err
		}
		applied, stale := session.ApplyResolutions(ctx, decisions)
		if applied > 0 {
			e.printf("%s Resumed %d earlier decisions\n", cli.InfoStyle.Render(cli.LinkIcon), applied)
		}
		for _, f := range stale {
			e.logger.Debug("Saved decision no longer applies", "error", f.Err)
		}
	}

	session.OnResolved(func(ctx context.Context, d model.SavedDecision) error {
		return e.store.SaveResolution(ctx, saved.ID, d)
	})
	return saved, nil
}

func (e *reconcileEnv) interact(ctx context.Context, session *engine.Session, total int, countryCode string, dryRun bool) error {
	hint := resumeHint
	if dryRun {
		hint = "Dry run: nothing was saved."
	}
	handler := cli.NewInterruptHandler(e.out)
	ctx, stop := handler.HandleInterrupts(ctx, hint)
	defer stop()

	prompter := cli.NewPrompter(e.in, e.out, countryCode)
	prompter.SetTotal(total)
	err := session.ResolveInteractively(ctx, prompter)
	prompter.Finish()

	if handler.WasInterrupted() || errors.Is(err, context.Canceled) {
		return errInterrupted
	}
	return err
}

// checkpoint snapshots the database before the run can change it. A failed
// snapshot is reported and the run continues.
func (e *reconcileEnv) checkpoint(ctx context.Context) {
	manager, err := e.store.NewCheckpointManager()
	if err == nil {
		_, err = manager.AutoCheckpoint(ctx, "reconcile")
	}
	if err != nil && !errors.Is(err, storage.ErrInMemoryDatabase) {
		e.logger.Warn("Failed to create checkpoint", "error", err)
	}
}

func (e *reconcileEnv) exportSheet(ctx context.Context, result *engine.Result) (string, error) {
	cfg, err := config.LoadSheetsConfig()
	if err != nil {
		return "", fmt.Errorf("invalid sheets configuration: %w", err)
	}
	api, err := e.newSheets(ctx, *cfg)
	if err != nil {
		return "", err
	}
	return sheets.NewWriter(api, *cfg, e.logger).Write(ctx, result.Records, result.Summary)
}

func (e *reconcileEnv) printf(format string, a ...any) {
	if _, err := fmt.Fprintf(e.out, format, a...); err != nil {
		e.logger.Warn("Failed to write output", "error", err)
	}
}

func writeOutput(path string, records []model.ReconciledRecord, countryCode string) (err error) {
	f, err := os.Create(config.ExpandPath(path))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()
	return export.WriteCSV(f, records, export.Options{CountryCode: countryCode})
}

func parseDefaultAction(s string) (model.Action, error) {
	action, err := model.ParseAction(strings.TrimSpace(s))
	if err != nil || action == model.ActionManualEdit {
		return 0, fmt.Errorf("%w: default action %q (want use_imported, keep_registry or create_identity)",
			common.ErrInvalidConfig, s)
	}
	return action, nil
}

// dryRunRegistry reads the real registry and refuses to create identities.
type dryRunRegistry struct {
	service.IdentityLister
}

func (dryRunRegistry) CreateIdentity(context.Context, string, string, model.Attributes) (*model.Identity, error) {
	return nil, errDryRun
}
