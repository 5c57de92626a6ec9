package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mmrzaf/bondgen/internal/app"
	"github.com/mmrzaf/bondgen/internal/domain"
)

func generateCmd() *cobra.Command {
	var acceptDefaults bool

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate records for the enabled entities",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				report, err := e.svc.Generate(ctx, acceptDefaults)
				if report == nil {
					return err
				}
				if format == "json" {
					if perr := printJSON(report); perr != nil {
						return perr
					}
					return err
				}

				if len(report.Defaults) > 0 {
					ids := make([]string, 0, len(report.Defaults))
					for id := range report.Defaults {
						ids = append(ids, string(id))
					}
					sort.Strings(ids)
					fmt.Println("Defaults applied:")
					for _, id := range ids {
						fmt.Printf("  %s: %s\n", id, report.Defaults[domain.EntityID(id)])
					}
				}
				if report.Skipped() {
					fmt.Println("Nothing generated. Review the amounts and run generate again.")
					return nil
				}
				if perr := printResults(report.Results, e.svc.Graph().DependencyOrder()); perr != nil {
					return perr
				}
				return err
			})
		},
	}
	cmd.Flags().BoolVarP(&acceptDefaults, "accept-defaults", "y", false, "Generate in the same call when defaults are applied")
	return cmd
}

func deleteCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete generated records of the enabled entities",
		Long:  "Delete removes the most recent batch of each enabled entity, children first. With --all every tracked record of those entities goes.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				results, err := e.svc.Delete(ctx, !all)
				if perr := printResults(results, e.svc.Graph().DependencyOrder()); perr != nil {
					return perr
				}
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Delete every tracked record, not only the last batch")
	return cmd
}

func purgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete every tracked record of every entity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				results, err := e.svc.Purge(ctx)
				if perr := printResults(results, e.svc.Graph().DependencyOrder()); perr != nil {
					return perr
				}
				return err
			})
		},
	}
}

func ledgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the generation ledger",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the tracked batches per entity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				entries, err := e.svc.LedgerSummary(ctx)
				if err != nil {
					return err
				}
				if format == "json" {
					return printJSON(entries)
				}
				w := newTable()
				fmt.Fprintln(w, "ENTITY\tBATCHES\tRECORDS")
				for _, entry := range entries {
					sizes := make([]string, len(entry.Batches))
					for i, n := range entry.Batches {
						sizes[i] = fmt.Sprint(n)
					}
					fmt.Fprintf(w, "%s\t%s\t%d\n", entry.Entity, strings.Join(sizes, " "), entry.Records)
				}
				return w.Flush()
			})
		},
	}

	cmd.AddCommand(showCmd)
	return cmd
}

func historyCmd() *cobra.Command {
	var (
		limit     int
		operation string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past generate, delete and purge runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(_ context.Context, e *env) error {
				runs, err := e.svc.History(limit, domain.Operation(operation))
				if err != nil {
					return err
				}
				if format == "json" {
					return printJSON(runs)
				}
				w := newTable()
				fmt.Fprintln(w, "ID\tOPERATION\tSTATE\tSEED\tENTITIES\tSTARTED\tERROR")
				for _, r := range runs {
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
						r.ID[:8], r.Operation, r.State, r.Seed, len(r.Results), r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Error)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Limit results")
	cmd.Flags().StringVar(&operation, "operation", "", "Filter by operation (generate|delete|purge)")
	return cmd
}

func storeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Inspect the record store",
	}

	var timeout time.Duration
	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Connect to the record store and probe what it supports",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			check, err := app.CheckStore(ctx, cfg.Store, cfg.StoreDSN, cfg.StoreSchema)
			if format == "json" {
				if perr := printJSON(check); perr != nil {
					return perr
				}
				return err
			}
			if err != nil {
				return err
			}
			fmt.Printf("Store:    %s (%dms)\n", check.Kind, check.LatencyMS)
			if check.ServerVersion != "" {
				fmt.Printf("Version:  %s\n", check.ServerVersion)
			}
			caps := check.Capabilities
			fmt.Printf("Create:   %t\nInsert:   %t\nProject:  %t\nDelete:   %t\n",
				caps.CanCreate, caps.CanInsert, caps.CanProject, caps.CanDelete)
			return nil
		},
	}
	checkCmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Check timeout")

	cmd.AddCommand(checkCmd)
	return cmd
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			redacted := cfg.Redacted()
			if format == "json" {
				return printJSON(redacted)
			}
			data, err := yaml.Marshal(redacted)
			if err != nil {
				return err
			}
			fmt.Print(string(data))
			return nil
		},
	}
}
