package cmd

import (
	"context"
	"fmt"

	coreconfig "github.com/AzielCF/az-crm/core/config"
	"github.com/AzielCF/az-crm/crm/application"
	"github.com/AzielCF/az-crm/crm/repository"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load demo queues, agents and contacts (existing rows are kept)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		password, _ := cmd.Flags().GetString("password")

		ctx := context.Background()
		db, err := openDatabase(ctx, coreconfig.Global)
		if err != nil {
			return err
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}

		seeder := application.NewSeeder(
			repository.NewContactGormRepository(db),
			repository.NewQueueGormRepository(db),
			repository.NewUserGormRepository(db),
		)
		res, err := seeder.Run(ctx, password)
		if err != nil {
			return err
		}
		fmt.Printf("queues: %d, users: %d, memberships: %d, contacts: %d\n", res.Queues, res.Users, res.Members, res.Contacts)
		return nil
	},
}

func init() {
	seedCmd.Flags().String("password", "admin123", "password assigned to every seeded user")
	rootCmd.AddCommand(seedCmd)
}
