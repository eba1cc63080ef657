/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/todolist-app/server/config"
	"github.com/todolist-app/server/internal/db"
	"github.com/todolist-app/server/internal/services"
	"github.com/todolist-app/server/internal/storage"
	"github.com/todolist-app/server/internal/store"
)

// exportCmd represents the export command.
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Snapshot todo lists to object storage",
	Long: `Writes one JSON snapshot per user to the bucket selected by
STORAGE_BACKEND (minio or gcs).`,
}

var exportUser string

var exportRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Export every list, or a single one with --user",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := config.LoadConfig()

		objects, err := openExportStorage(ctx, cfg)
		if err != nil {
			return err
		}
		if err := objects.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("ensure bucket %s: %w", objects.Bucket(), err)
		}

		dbConn, err := db.Open(ctx, cfg)
		if err != nil {
			return err
		}
		defer dbConn.Close()

		exporter := newExporter(dbConn, objects)
		if exportUser != "" {
			if err := exporter.ExportUser(ctx, exportUser); err != nil {
				return err
			}
			log.Printf("exported %s to %s/%s", exportUser, objects.Bucket(), services.ExportKey(exportUser))
			return nil
		}

		count, err := exporter.ExportAll(ctx)
		if err != nil {
			return fmt.Errorf("export stopped after %d lists: %w", count, err)
		}
		log.Printf("exported %d lists to %s", count, objects.Bucket())
		return nil
	},
}

var exportShowCmd = &cobra.Command{
	Use:   "show <username>",
	Short: "Print the latest snapshot for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := config.LoadConfig()

		objects, err := openExportStorage(ctx, cfg)
		if err != nil {
			return err
		}

		snapshot, err := services.NewExportService(nil, nil, objects).Load(ctx, args[0])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snapshot)
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.AddCommand(exportRunCmd)
	exportCmd.AddCommand(exportShowCmd)

	exportRunCmd.Flags().StringVar(&exportUser, "user", "", "export only this user's list")
}

func openExportStorage(ctx context.Context, cfg config.Config) (*storage.Storage, error) {
	objects, err := storage.Open(ctx, cfg.Export)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	return objects, nil
}

func newExporter(dbConn *sql.DB, objects *storage.Storage) *services.ExportService {
	return services.NewExportService(
		store.NewUserRepository(dbConn),
		store.NewItemRepository(dbConn),
		objects,
	)
}
