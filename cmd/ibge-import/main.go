// main.go - ibge-import: maintenance CLI for the IBGE food dataset
//
//	ibge-import convert --in extracted.json --out data/ibge-pof.json --clean
//	ibge-import merge --base data/ibge-pof.json --extra more.json
//	ibge-import import --file data/ibge-pof.json

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go-nutri-backend/config"
	"go-nutri-backend/database"
	"go-nutri-backend/foods"
	"go-nutri-backend/ibge"
	"go-nutri-backend/logger"
	"go-nutri-backend/mqtt"

	"github.com/spf13/cobra"
)

func main() {
	cfg := config.Load()
	if l, err := logger.New(cfg.LogLevel); err == nil {
		logger.Init(l)
	}
	defer logger.Sync()

	if err := newRootCommand(cfg).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ibge-import",
		Short:         "Convert, merge and import IBGE food composition data",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newConvertCommand(cfg))
	cmd.AddCommand(newMergeCommand(cfg))
	cmd.AddCommand(newImportCommand(cfg))
	return cmd
}

func newConvertCommand(cfg *config.Config) *cobra.Command {
	var in, out string
	var clean bool
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert extractor output into the dataset format",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := os.ReadFile(in)
			if err != nil {
				return err
			}
			var exp ibge.Expanded
			if err := json.Unmarshal(b, &exp); err != nil {
				return fmt.Errorf("parse %s: %w", in, err)
			}

			foods := ibge.ConvertExpanded(exp)
			if clean {
				foods = ibge.Clean(foods)
			}
			ds := &ibge.Dataset{Version: "expanded", Foods: foods}
			return save(cmd, out, ds)
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "extractor JSON file")
	cmd.Flags().StringVar(&out, "out", cfg.IBGEDataPath, "dataset file to write")
	cmd.Flags().BoolVar(&clean, "clean", false, "dedupe, filter and recategorize before writing")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}

func newMergeCommand(cfg *config.Config) *cobra.Command {
	var base, extra string
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Add foods from another dataset that the base does not have",
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := ibge.LoadDataset(base)
			if err != nil {
				return err
			}
			more, err := ibge.LoadDataset(extra)
			if err != nil {
				return err
			}
			added := ibge.Merge(ds, more.Foods)
			fmt.Fprintf(cmd.OutOrStdout(), "added %d of %d foods\n", added, len(more.Foods))
			return save(cmd, base, ds)
		},
	}
	cmd.Flags().StringVar(&base, "base", cfg.IBGEDataPath, "dataset to extend")
	cmd.Flags().StringVar(&extra, "extra", "", "dataset with foods to add")
	_ = cmd.MarkFlagRequired("extra")
	return cmd
}

func newImportCommand(cfg *config.Config) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Upsert the dataset into the configured database",
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := ibge.LoadDataset(file)
			if err != nil {
				return err
			}
			if err := database.Connect(cfg); err != nil {
				return err
			}
			res, err := ibge.Import(context.Background(), database.DB, ds.Foods)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %d, updated %d, skipped %d\n", res.Created, res.Updated, res.Skipped)
			return announce(cfg, res)
		},
	}
	cmd.Flags().StringVar(&file, "file", cfg.IBGEDataPath, "dataset file")
	return cmd
}

// announce tells running servers to drop their cached food searches. A
// missing broker is fine, their caches expire on their own.
func announce(cfg *config.Config, res ibge.ImportResult) error {
	if cfg.MQTTBroker == "" {
		return nil
	}
	if err := mqtt.Connect(cfg.MQTTBroker); err != nil {
		logger.L().Warnw("import not announced", "error", err)
		return nil
	}
	defer mqtt.Disconnect()
	return mqtt.Publish(foods.UpdatedTopic(cfg.MQTTTopicPrefix), res)
}

// save backs up path, then writes ds with its derived fields refreshed.
func save(cmd *cobra.Command, path string, ds *ibge.Dataset) error {
	now := time.Now()
	backup, err := ibge.Backup(path, now)
	if err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	if backup != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "backup: %s\n", backup)
	}

	ds.Finalize(now)
	if err := ibge.WriteDataset(path, ds); err != nil {
		return err
	}
	cov := ibge.MeasureCoverage(ds.Foods)
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d foods in %d categories to %s (minerals %d, vitamins %d)\n",
		ds.TotalFoods, len(ds.Categories), path, cov.WithMinerals, cov.WithVitamins)
	return nil
}
