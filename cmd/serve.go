package cmd

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"

	"github.com/insuranceops/commission-processor/internal/api"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Store.Close()

		if listenAddr != "" {
			a.Cfg.ListenAddr = listenAddr
		}

		fiberApp := fiber.New(fiber.Config{
			BodyLimit: a.Cfg.MaxUploadMB << 20,
			AppName:   "commission-processor v" + api.Version,
		})
		fiberApp.Use(recover.New())
		fiberApp.Use(logger.New())

		h := api.New(a.Cfg, a.Store, a.Registry, a.Configs)
		h.RegisterRoutes(fiberApp)

		fmt.Printf("Listening on %s\n", a.Cfg.ListenAddr)
		return fiberApp.Listen(a.Cfg.ListenAddr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
