package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/insuranceops/commission-processor/internal/export"
	"github.com/insuranceops/commission-processor/internal/fileparse"
	"github.com/insuranceops/commission-processor/internal/models"
	"github.com/insuranceops/commission-processor/internal/session"
)

var (
	carrierFlag  string
	fileTypeFlag string
	outputDir    string
	formatFlag   string
)

var processCmd = &cobra.Command{
	Use:   "process <statement.csv> [statement2.xlsx ...]",
	Short: "Convert statement files into normalized import files",
	Long: `Parses each statement, recognizes the carrier by column layout (or uses
--carrier), and writes normalized export files. Carriers with a registered
transformer produce one file per applicable output type; all others are
exported through fuzzy column mapping against the template.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Store.Close()

		if outputDir != "" {
			a.Cfg.ExportDir = outputDir
		}
		if formatFlag != "" {
			a.Cfg.ExportFormat = formatFlag
		}
		gen := &export.Generator{Dir: a.Cfg.ExportDir, Format: a.Cfg.ExportFormat}

		for _, path := range args {
			if err := processStatement(a, gen, path); err != nil {
				return fmt.Errorf("processing %s: %w", path, err)
			}
		}
		return nil
	},
}

func init() {
	processCmd.Flags().StringVar(&carrierFlag, "carrier", "", "carrier name (recognized from the layout if omitted)")
	processCmd.Flags().StringVar(&fileTypeFlag, "type", "", "file type: commission, chargeback, or adjustment")
	processCmd.Flags().StringVar(&outputDir, "output-dir", "", "export directory (overrides config)")
	processCmd.Flags().StringVar(&formatFlag, "format", "", "export format: csv or xlsx (overrides config)")
	rootCmd.AddCommand(processCmd)
}

func processStatement(a *app, gen *export.Generator, path string) error {
	fmt.Printf("Processing: %s\n", path)

	parsed, err := fileparse.Parse(path)
	if err != nil {
		return err
	}
	fmt.Printf("  Parsed %d row(s), %d column(s)\n", parsed.RowCount, len(parsed.Columns))

	name := filepath.Base(path)
	sess, err := session.New(a.Store, a.Registry, name, name, parsed.Columns, parsed.RowCount)
	if err != nil {
		return err
	}

	recognized, err := sess.Recognize()
	if err != nil {
		return err
	}

	carrier := carrierFlag
	if carrier == "" {
		if recognized == "" {
			return fmt.Errorf("carrier not recognized from the column layout; use --carrier")
		}
		carrier = recognized
		fmt.Printf("  Recognized carrier: %s\n", carrier)
	}

	if err := sess.ConfirmCarrier(carrier, models.OutputKind(fileTypeFlag)); err != nil {
		return err
	}
	if err := sess.Resolve(); err != nil {
		return err
	}

	started := time.Now().UTC()
	if sess.HasTransformer {
		tr, ok := a.Registry.Lookup(sess.Carrier)
		if !ok {
			return &models.TransformerUnavailableError{Carrier: sess.Carrier}
		}
		if len(sess.Outputs) == 0 {
			fmt.Println("  No output types apply to this file's columns")
			return nil
		}
		results := gen.GenerateAll(tr, sess.Outputs, sess.Carrier, name, parsed.Table)
		for i := range results {
			r := &results[i]
			logRun(a, sess, started, r)
			if r.Error != "" {
				return fmt.Errorf("%s output failed: %s", r.Kind, r.Error)
			}
			fmt.Printf("  Output (%s): %s (%d rows)\n", r.Kind, filepath.Join(gen.Dir, r.Filename), r.RowCount)
			for _, w := range r.MissingLookups {
				fmt.Printf("  Warning: %s\n", w)
			}
		}
	} else {
		mapped := 0
		for _, src := range sess.Mapping {
			if src != "" {
				mapped++
			}
		}
		fmt.Printf("  Mapped %d of %d template fields\n", mapped, len(sess.Mapping))

		result, err := gen.GenerateMapped(sess.Carrier, name,
			models.TemplateFor(sess.FileType), sess.Mapping, parsed.Table)
		if err != nil {
			return err
		}
		logRun(a, sess, started, result)
		fmt.Printf("  Output: %s (%d rows)\n", filepath.Join(gen.Dir, result.Filename), result.RowCount)
	}

	return sess.MarkProcessed()
}

func logRun(a *app, sess *session.Session, started time.Time, result *export.Result) {
	entry := models.ImportLog{
		BatchID:       uuid.NewString()[:8],
		Carrier:       sess.Carrier,
		FileName:      sess.OriginalFilename,
		FileType:      sess.FileType,
		Source:        "cli",
		RowsProcessed: sess.RowCount,
		RowsExported:  result.RowCount,
		Status:        "completed",
		StartedAt:     started,
		CompletedAt:   time.Now().UTC(),
	}
	if result.Kind != "" {
		entry.FileType = result.Kind
	}
	if result.Error != "" {
		entry.Status = "failed"
		entry.Error = result.Error
	}
	if err := a.Store.LogImport(entry); err != nil {
		fmt.Printf("  Warning: import log write failed: %v\n", err)
	}
}
