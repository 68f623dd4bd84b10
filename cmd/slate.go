package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/statline/internal/fetcher"
	"github.com/sells-group/statline/internal/model"
	"github.com/sells-group/statline/internal/transform"
	"github.com/sells-group/statline/internal/warehouse"
)

var (
	slateMeta     transform.SlateMeta
	slateSheet    string
	slatePosition string
	slateOutput   string
)

var slateCmd = &cobra.Command{
	Use:   "slate",
	Short: "Manage priced contest slates",
}

var slateImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import a salary sheet (CSV or XLSX)",
	Long:  "Parses a contest salary export and replaces the stored entries of the given slate.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		rows, err := readSheet(ctx, args[0], slateSheet)
		if err != nil {
			return err
		}
		entries, err := transform.ParseSlate(rows, slateMeta)
		if err != nil {
			return err
		}

		store, err := warehouse.Open(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := store.CommitSlate(ctx, slateMeta.Season, slateMeta.Week, slateMeta.SlateID, entries)
		if err != nil {
			return err
		}
		zap.L().Info("slate imported",
			zap.String("file", args[0]),
			zap.String("slate", slateMeta.SlateID),
			zap.Int("season", slateMeta.Season),
			zap.Int("week", slateMeta.Week),
			zap.Int64("rows", n),
		)
		return nil
	},
}

var slateShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List the entries of a slate, highest price first",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := openQuery(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		entries, err := svc.Slate(cmd.Context(), model.SlateFilter{
			Season:   slateMeta.Season,
			Week:     slateMeta.Week,
			SlateID:  slateMeta.SlateID,
			Position: slatePosition,
		})
		if err != nil {
			return err
		}
		if slateOutput != outputTable {
			return writeStructured(os.Stdout, slateOutput, entries)
		}
		formatSlate(os.Stdout, entries)
		return nil
	},
}

// readSheet loads a CSV or XLSX file as rows with the header first.
func readSheet(ctx context.Context, path, sheet string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return fetcher.ReadXLSX(path, fetcher.XLSXOptions{SheetName: sheet})
	case ".csv", ".txt":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "open slate file")
		}
		defer f.Close()
		header, rows, err := fetcher.ReadCSV(ctx, f)
		if err != nil {
			return nil, err
		}
		return append([][]string{header}, rows...), nil
	}
	return nil, eris.Errorf("unsupported slate file %q (want .csv or .xlsx)", path)
}

func init() {
	for _, c := range []*cobra.Command{slateImportCmd, slateShowCmd} {
		c.Flags().IntVar(&slateMeta.Season, "season", 0, "season")
		c.Flags().IntVar(&slateMeta.Week, "week", 0, "week")
		c.Flags().StringVar(&slateMeta.SlateID, "slate-id", "main", "slate identifier")
		_ = c.MarkFlagRequired("season")
		_ = c.MarkFlagRequired("week")
	}
	slateImportCmd.Flags().StringVar(&slateSheet, "sheet", "", "XLSX sheet name (default first sheet)")
	slateShowCmd.Flags().StringVar(&slatePosition, "position", "", "QB, RB, WR, TE or All")
	slateShowCmd.Flags().StringVarP(&slateOutput, "output", "o", outputTable, "output format: table, json or yaml")

	slateCmd.AddCommand(slateImportCmd, slateShowCmd)
	rootCmd.AddCommand(slateCmd)
}
