// Package cmd defines the CLI commands.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/insuranceops/commission-processor/internal/config"
	"github.com/insuranceops/commission-processor/internal/store"
	"github.com/insuranceops/commission-processor/internal/transform"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "commission-processor",
	Short: "Normalize carrier commission statements into canonical import files",
	Long: `commission-processor ingests commission statements (CSV, XLSX, XML)
from insurance carriers, recognizes the carrier by column layout, and
produces normalized import files from canonical templates.

Carriers with a registered transformer are converted field-by-field,
potentially into several output files per statement. Everything else goes
through fuzzy column mapping against the chosen template.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml or $CONFIG_PATH)")
}

// app bundles the collaborators the commands share.
type app struct {
	Cfg      config.Config
	Store    store.Store
	Configs  *transform.ConfigSet
	Registry *transform.Registry
}

func loadApp() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	for _, dir := range []string{cfg.UploadDir, cfg.ExportDir, cfg.DataDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	st, err := store.OpenSQLite(cfg.DBPath, cfg.RecognitionThreshold)
	if err != nil {
		return nil, err
	}

	cs, err := transform.LoadConfigs(cfg.DataDir)
	if err != nil {
		st.Close()
		return nil, err
	}

	return &app{
		Cfg:      cfg,
		Store:    st,
		Configs:  cs,
		Registry: transform.NewRegistry(cs),
	}, nil
}
