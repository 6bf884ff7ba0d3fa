package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/medvault-api/internal/model"
	"github.com/jwalitptl/medvault-api/internal/repository/postgres"
	apperrors "github.com/jwalitptl/medvault-api/pkg/errors"
)

// withApp loads config and runs fn with a ready app, closing it afterwards.
func withApp(cmd *cobra.Command, fn func(a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the patients table (postgres store only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				if a.db == nil {
					return fmt.Errorf("store driver %q has no schema to migrate", a.cfg.Store.Driver)
				}
				if err := postgres.Migrate(cmd.Context(), a.db); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
				return nil
			})
		},
	}
}

func nextIDCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "next-id",
		Short: "Print the ID the next created profile would get",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				id, err := a.patientSvc.NextID(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			})
		},
	}
}

func drugsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drugs",
		Short: "Query drug information and the local drug map",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the drug names known to the local map",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				names, err := a.drugSvc.KnownDrugs(cmd.Context())
				if err != nil {
					return err
				}
				for _, name := range names {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "lookup <name>",
		Short: "Look up purpose, warnings and active ingredient of a drug",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				info, err := a.drugSvc.Lookup(cmd.Context(), strings.Join(args, " "))
				if err != nil {
					if appErr, ok := apperrors.As(err); ok && appErr.Code == apperrors.ErrLookupUnavailable {
						fmt.Fprintln(cmd.OutOrStdout(), appErr.Message)
						return nil
					}
					return err
				}
				printDrug(cmd, info)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "map <local-name> <search-name>",
		Short: "Map a local drug name to the name the label API knows",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				mapping := model.DrugMapping{LocalName: args[0], SearchName: args[1]}
				if err := a.drugSvc.AddMapping(cmd.Context(), mapping); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", mapping.LocalName, mapping.SearchName)
				return nil
			})
		},
	})

	return cmd
}

func printDrug(cmd *cobra.Command, info *model.DrugInfo) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%s)\n\n", info.Name, info.SearchName)
	fmt.Fprintf(out, "Purpose:\n%s\n\n", info.Purpose)
	fmt.Fprintf(out, "Warnings:\n%s\n\n", info.Warnings)
	fmt.Fprintf(out, "Active Ingredient:\n%s\n", info.ActiveIngredient)
}
