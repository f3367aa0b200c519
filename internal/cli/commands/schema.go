package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/recordkit/internal/cli/ui"
	"github.com/conduit-lang/recordkit/internal/orm/schema"
)

func newSchemaCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema [record]",
		Short: "Show declared records and their fields",
		Long: `Without arguments, list every record in the schema file. With a record
name, show its fields with kinds, labels and constraints.

Examples:
  recordkit schema
  recordkit schema Model`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, registry, err := openSchema(g)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if len(args) == 0 {
				table := ui.NewTable(w, []string{"Record", "Table", "Primary key", "Fields"}, &ui.TableOptions{NoColor: g.noColor})
				for _, name := range registry.List() {
					rs := registry.MustGet(name)
					table.AddRow(rs.Name, rs.Table, rs.PrimaryKey, strconv.Itoa(rs.Len()))
				}
				table.Render()
				return nil
			}

			rs, err := lookup(registry, args[0])
			if err != nil {
				return err
			}
			ui.Header(w, rs.Name, g.noColor)
			kv := ui.NewKeyValueTable(w, g.noColor)
			kv.AddRow("Table", rs.Table)
			kv.AddRow("Primary key", rs.PrimaryKey)
			kv.Render()
			fmt.Fprintln(w)

			table := ui.NewTable(w, []string{"Field", "Kind", "Label", "Required", "Constraints"}, &ui.TableOptions{NoColor: g.noColor})
			for _, f := range rs.Fields() {
				md := f.Metadata()
				required := ""
				if md.Required {
					required = "yes"
				}
				table.AddRow(f.String(), md.Kind, md.Label, required, constraints(f))
			}
			table.Render()
			return nil
		},
	}
}

// constraints summarises the rules a field enforces
func constraints(f *schema.FieldSpec) string {
	var parts []string
	if f.Hidden {
		parts = append(parts, "hidden")
	}
	if f.Readonly {
		parts = append(parts, "readonly")
	}
	if f.Nullable {
		parts = append(parts, "null")
	}
	if f.MinLength > 0 {
		parts = append(parts, fmt.Sprintf("min_length=%d", f.MinLength))
	}
	if f.MaxLength != nil && *f.MaxLength > 0 {
		parts = append(parts, fmt.Sprintf("max_length=%d", *f.MaxLength))
	}
	if f.Minimum != nil {
		parts = append(parts, "min="+strconv.FormatFloat(*f.Minimum, 'g', -1, 64))
	}
	if f.Maximum != nil {
		parts = append(parts, "max="+strconv.FormatFloat(*f.Maximum, 'g', -1, 64))
	}
	if f.HasChoices() {
		values := make([]string, len(f.Choices))
		for i, c := range f.Choices {
			values[i] = fmt.Sprint(c.Value)
		}
		parts = append(parts, "choices="+strings.Join(values, "|"))
	}
	if f.Kind.IsNested() && f.ForeignKey != "" {
		parts = append(parts, "foreign_key="+f.ForeignKey)
	}
	if f.Default != nil {
		parts = append(parts, fmt.Sprintf("default=%v", f.Default))
	}
	return strings.Join(parts, " ")
}
