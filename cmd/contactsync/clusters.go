package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Veraticus/contact-sync/internal/cli"
	"github.com/Veraticus/contact-sync/internal/cluster"
	"github.com/Veraticus/contact-sync/internal/config"
	"github.com/Veraticus/contact-sync/internal/importer"
	"github.com/Veraticus/contact-sync/internal/normalize"
)

func clustersCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "clusters",
		Short: "Preview how a spreadsheet groups into customers",
		Long: `Group the rows of a CSV export by normalized customer name and show each
group's phones and outstanding total. The registry is not read or changed.`,
		Example: `  contactsync clusters --file customers.csv`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rc, err := config.LoadReconcileConfig()
			if err != nil {
				return err
			}
			return previewClusters(cmd.Context(), file, rc.CountryCode, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "CSV file to read (required)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func previewClusters(ctx context.Context, path, countryCode string, out io.Writer) error {
	f, err := os.Open(config.ExpandPath(path))
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	records, err := importer.ReadCSV(ctx, f)
	if err != nil {
		return err
	}

	clusters := cluster.NewEngine(slog.Default()).Cluster(records)
	if len(clusters) == 0 {
		fmt.Fprintln(out, cli.SubtitleStyle.Render("No named rows found."))
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join([]string{
		cli.TableHeaderStyle.Render("#"),
		cli.TableHeaderStyle.Render("NAME"),
		cli.TableHeaderStyle.Render("ROWS"),
		cli.TableHeaderStyle.Render("PHONE"),
		cli.TableHeaderStyle.Render("ALTERNATES"),
		cli.TableHeaderStyle.Render("OUTSTANDING"),
	}, "\t"))

	conflicted := 0
	for _, c := range clusters {
		alternates := make([]string, len(c.AlternatePhones))
		for i, p := range c.AlternatePhones {
			alternates[i] = normalize.DisplayPhone(p, countryCode)
		}
		alt := strings.Join(alternates, ", ")
		if c.HasPhoneConflict() {
			conflicted++
			alt = cli.WarningStyle.Render(alt)
		}

		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\t%s\n",
			c.ID,
			c.IdentityName,
			len(c.Members),
			normalize.DisplayPhone(c.PrimaryPhone, countryCode),
			alt,
			c.TotalOutstanding.StringFixed(2))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%s\n", cli.SubtitleStyle.Render(fmt.Sprintf(
		"%d rows in %d clusters, %d with conflicting phones", len(records), len(clusters), conflicted)))
	return nil
}
