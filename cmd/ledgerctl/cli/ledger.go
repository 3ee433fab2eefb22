package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/companies"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the ledger schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := opts.pool(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := db.Migrate(cmd.Context(), pool); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
			return nil
		},
	}
}

func newCompaniesCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "companies",
		Short: "Manage companies",
	}
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a company",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := opts.pool(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()
			company, err := companies.NewRepository(pool).Create(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Company created: %d %s\n", company.ID, company.Name)
			return nil
		},
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "List company ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := opts.pool(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()
			ids, err := companies.NewRepository(pool).ActiveIDs(cmd.Context())
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No companies found.")
				return nil
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
	cmd.AddCommand(create, list)
	return cmd
}

func newCOACommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "coa",
		Short: "Chart of accounts",
	}
	var companyID int64
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Seed the default chart of accounts for a company",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if companyID <= 0 {
				return fmt.Errorf("--company is required")
			}
			pool, err := opts.pool(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()
			svc := accounting.NewService(accounting.NewRepository(pool), shared.NewAuditLogger(pool), nil, opts.logger)
			created, err := svc.InitializeChartOfAccounts(cmd.Context(), companyID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Chart of accounts ready for company %d (%d accounts created)\n", companyID, created)
			return nil
		},
	}
	initCmd.Flags().Int64Var(&companyID, "company", 0, "company id")
	cmd.AddCommand(initCmd)
	return cmd
}
