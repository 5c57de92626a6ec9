package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/mmrzaf/bondgen/internal/graph"
	"github.com/mmrzaf/bondgen/internal/infra/repos/ledger"
	"github.com/mmrzaf/bondgen/internal/infra/repos/schemas"
	"github.com/mmrzaf/bondgen/internal/registry"
	"github.com/mmrzaf/bondgen/internal/schema"
	"github.com/mmrzaf/bondgen/internal/validation"
)

func schemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect the schema",
	}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the schema file",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSchema()
			if err != nil {
				return err
			}

			validator := validation.NewValidator(registry.DefaultGeneratorRegistry())
			if err := validator.ValidateSchema(s); err != nil {
				fmt.Println("Validation failed:")
				for _, e := range multierr.Errors(err) {
					fmt.Printf("  - %s\n", e)
				}
				return fmt.Errorf("schema '%s' is invalid", s.Name)
			}

			if cycles := validation.Cycles(s); len(cycles) > 0 {
				fmt.Printf("Warning: bonds form a cycle through %s; bind statics to break it before generating\n", strings.Join(cycles, ", "))
			}
			fmt.Printf("Schema '%s' is valid\n", s.Name)
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the parsed schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSchema()
			if err != nil {
				return err
			}
			if format == "json" {
				return printJSON(s)
			}
			data, err := yaml.Marshal(s)
			if err != nil {
				return err
			}
			fmt.Print(string(data))
			return nil
		},
	}

	graphCmd := &cobra.Command{
		Use:   "graph",
		Short: "Print entities in dependency order with their bonds",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSchema()
			if err != nil {
				return err
			}
			reg := registry.DefaultGeneratorRegistry()
			if err := validation.NewValidator(reg).ValidateSchema(s); err != nil {
				return err
			}
			templates, err := schema.Compile(s, reg)
			if err != nil {
				return err
			}
			g, err := graph.New(templates, ledger.NewMemoryRepository(), graph.Options{})
			if err != nil {
				return err
			}

			if format == "json" {
				return printJSON(map[string]any{
					"order": g.DependencyOrder(),
					"edges": g.Edges(),
				})
			}
			w := newTable()
			fmt.Fprintln(w, "ENTITY\tFIELD\tFROM")
			for _, id := range g.DependencyOrder() {
				incoming := g.Incoming(id)
				if len(incoming) == 0 {
					fmt.Fprintf(w, "%s\t-\t-\n", id)
					continue
				}
				for _, e := range incoming {
					fmt.Fprintf(w, "%s\t%s\t%s.%s\n", id, e.ChildField, e.Parent, e.ParentField)
				}
			}
			return w.Flush()
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List schema files next to the configured schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := schemas.NewFileRepository(filepath.Dir(cfg.SchemaPath)).List()
			if err != nil {
				return err
			}
			if format == "json" {
				return printJSON(list)
			}
			w := newTable()
			fmt.Fprintln(w, "ID\tNAME\tVERSION\tENTITIES")
			for _, s := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", s.ID, s.Name, s.Version, len(s.Entities))
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(validateCmd, showCmd, graphCmd, listCmd)
	return cmd
}
