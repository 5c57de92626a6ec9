package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mmrzaf/bondgen/internal/domain"
)

func entityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entity",
		Short: "Select entities and tune their settings",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List entities with their settings and tracked records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				infos, err := e.svc.Describe(ctx)
				if err != nil {
					return err
				}
				if format == "json" {
					return printJSON(infos)
				}
				w := newTable()
				fmt.Fprintln(w, "ENTITY\tTABLE\tENABLED\tAMOUNT\tRESOLVED\tSTATICS\tRECORDS")
				for _, info := range infos {
					amount := "-"
					if info.Amount != nil {
						amount = info.Amount.String()
					}
					statics := make([]string, 0, len(info.Statics))
					for _, b := range info.Statics {
						statics = append(statics, fmt.Sprintf("%s=%s", b.ChildField, strings.Join(b.Values, ",")))
					}
					fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%d\t%s\t%d\n",
						info.Name, info.Table, info.Enabled, amount, info.Resolved, strings.Join(statics, " "), info.Records)
				}
				return w.Flush()
			})
		},
	}

	enableCmd := &cobra.Command{
		Use:   "enable <entity>...",
		Short: "Add entities to the enabled set",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(_ context.Context, e *env) error {
				for _, id := range args {
					if err := e.svc.Enable(domain.EntityID(id)); err != nil {
						return err
					}
				}
				fmt.Printf("Enabled: %s\n", joinIDs(e.svc.Graph().Enabled()))
				return nil
			})
		},
	}

	disableCmd := &cobra.Command{
		Use:   "disable <entity>...",
		Short: "Remove entities from the enabled set",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(_ context.Context, e *env) error {
				for _, id := range args {
					if err := e.svc.Disable(domain.EntityID(id)); err != nil {
						return err
					}
				}
				fmt.Printf("Enabled: %s\n", joinIDs(e.svc.Graph().Enabled()))
				return nil
			})
		},
	}

	enableAllCmd := &cobra.Command{
		Use:   "enable-all",
		Short: "Enable every bonded entity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(_ context.Context, e *env) error {
				if err := e.svc.EnableAll(); err != nil {
					return err
				}
				fmt.Printf("Enabled: %s\n", joinIDs(e.svc.Graph().Enabled()))
				return nil
			})
		},
	}

	disableAllCmd := &cobra.Command{
		Use:   "disable-all",
		Short: "Clear the enabled set",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(_ context.Context, e *env) error {
				return e.svc.DisableAll()
			})
		},
	}

	amountCmd := &cobra.Command{
		Use:   "amount <entity> <amount>",
		Short: "Set an absolute amount (1000) or a parent multiplier (x3)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := domain.ParseAmount(args[1])
			if err != nil {
				return err
			}
			return withEnv(cmd, func(_ context.Context, e *env) error {
				id := domain.EntityID(args[0])
				if err := e.svc.SetAmount(id, amount); err != nil {
					return err
				}
				if n, ok := e.svc.Graph().ResolveAmount(id); ok {
					fmt.Printf("%s: %s (resolves to %d)\n", id, amount, n)
				} else {
					fmt.Printf("%s: %s (no resolvable parent amount)\n", id, amount)
				}
				return nil
			})
		},
	}

	delAmountCmd := &cobra.Command{
		Use:   "del-amount <entity>",
		Short: "Drop the amount setting of an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(_ context.Context, e *env) error {
				return e.svc.DelAmount(domain.EntityID(args[0]))
			})
		},
	}

	staticCmd := &cobra.Command{
		Use:   "static <entity> <field=v1,v2,...>",
		Short: "Bind a bonded field to literal values instead of its parent",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(_ context.Context, e *env) error {
				return e.svc.SetStatic(domain.EntityID(args[0]), args[1])
			})
		},
	}

	delStaticCmd := &cobra.Command{
		Use:   "del-static <entity>",
		Short: "Drop every static binding of an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(_ context.Context, e *env) error {
				return e.svc.DelStatics(domain.EntityID(args[0]))
			})
		},
	}

	cmd.AddCommand(listCmd, enableCmd, disableCmd, enableAllCmd, disableAllCmd,
		amountCmd, delAmountCmd, staticCmd, delStaticCmd)
	return cmd
}

func joinIDs(ids []domain.EntityID) string {
	if len(ids) == 0 {
		return "(none)"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ", ")
}
