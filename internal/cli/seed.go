package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flowgate-systems/flowgate/internal/seeder"
)

var (
	seedCfgFile   string
	seedGateway   string
	seedToken     string
	seedEvents    int
	seedBatchSize int
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed a resource hierarchy and drive ingestion traffic",
	Long: `Create fake tenants, data cores, flow types and event types in the
resource store, then send generated events at the gateway's ingestion
endpoints.

Configuration cascade (priority order):
  1. Command-line flags
  2. ./seeder.yaml
  3. ~/.flowgate/seeder.yaml
  4. Built-in defaults`,
	RunE: runSeed,
}

var seedInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a starter seeder.yaml profile",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "seeder.yaml"
		if len(args) > 0 {
			path = args[0]
		}
		if err := seeder.Default().WriteProfile(path); err != nil {
			return err
		}
		fmt.Printf("Wrote starter profile to %s\n", path)
		return nil
	},
}

var seedValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the seeder profile without running it",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := seeder.LoadConfig(seedCfgFile)
		if err != nil {
			return fmt.Errorf("profile validation failed: %w", err)
		}

		fmt.Println("Profile is valid:")
		fmt.Printf("  Gateway URL: %s\n", cfg.Gateway.URL)
		fmt.Printf("  Tenants: %d\n", cfg.Hierarchy.Tenants)
		fmt.Printf("  Data cores per tenant: %d\n", cfg.Hierarchy.DataCoresPerTenant)
		fmt.Printf("  Flow types per core: %d\n", cfg.Hierarchy.FlowTypesPerCore)
		fmt.Printf("  Event types per flow: %d\n", cfg.Hierarchy.EventTypesPerFlow)
		fmt.Printf("  Events: %d (batch size %d)\n", cfg.Traffic.Events, cfg.Traffic.BatchSize)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.AddCommand(seedInitCmd)
	seedCmd.AddCommand(seedValidateCmd)

	seedCmd.PersistentFlags().StringVar(&seedCfgFile, "config", "", "profile file (default: ./seeder.yaml or ~/.flowgate/seeder.yaml)")
	seedCmd.Flags().StringVar(&seedGateway, "gateway", "", "gateway base URL")
	seedCmd.Flags().StringVarP(&seedToken, "token", "t", "", "bearer token for the ingestion endpoints")
	seedCmd.Flags().IntVarP(&seedEvents, "events", "c", 0, "number of events to send")
	seedCmd.Flags().IntVarP(&seedBatchSize, "batch-size", "b", 0, "events per batch request")
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := seeder.LoadConfig(seedCfgFile)
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}

	if cmd.Flags().Changed("gateway") {
		cfg.Gateway.URL = seedGateway
	}
	if cmd.Flags().Changed("token") {
		cfg.Gateway.Token = seedToken
	}
	if cmd.Flags().Changed("events") {
		cfg.Traffic.Events = seedEvents
	}
	if cmd.Flags().Changed("batch-size") {
		cfg.Traffic.BatchSize = seedBatchSize
	}

	runner := seeder.NewRunner(cfg)
	if err := runner.Run(cmd.Context()); err != nil {
		return fmt.Errorf("seeding failed: %w", err)
	}
	return nil
}
