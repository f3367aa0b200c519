package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/recordkit/internal/cli/ui"
	"github.com/conduit-lang/recordkit/internal/orm/port"
	"github.com/conduit-lang/recordkit/internal/orm/record"
	"github.com/conduit-lang/recordkit/internal/orm/schema"
	"github.com/conduit-lang/recordkit/internal/orm/serialize"
)

func newValidateCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <record> <file|->",
		Short: "Check a JSON document against a record declaration",
		Long: `Validate a JSON object, or an array of objects, against a record without
touching the store. Every field is validated and coerced, and required
fields must be present.

Examples:
  recordkit validate Model person.json
  echo '{"firstname":"Ann"}' | recordkit validate Model -`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, registry, err := openSchema(g)
			if err != nil {
				return err
			}
			rs, err := lookup(registry, args[0])
			if err != nil {
				return err
			}
			data, err := readInput(cmd.InOrStdin(), args[1])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			count := 1
			if isArray(data) {
				c := record.NewCollection(rs)
				if err := serialize.FromJSON(ctx, c, data); err != nil {
					return err
				}
				for i, r := range c.All() {
					if err := r.Check(); err != nil {
						return fmt.Errorf("element %d: %w", i, err)
					}
				}
				count = c.Len()
			} else {
				r := record.New(rs)
				if err := serialize.FromJSON(ctx, r, data); err != nil {
					return err
				}
				if err := r.Check(); err != nil {
					return err
				}
			}

			ui.WriteSuccess(cmd.OutOrStdout(), fmt.Sprintf("%d valid %s", count, plural(rs.Name, count)), g.noColor)
			return nil
		},
	}
}

func newGetCommand(g *globalOptions) *cobra.Command {
	var (
		format string
		load   []string
	)

	cmd := &cobra.Command{
		Use:   "get <record> <id>",
		Short: "Print one record as JSON",
		Long: `Fetch a record by primary key. Linked records are printed as their key
unless loaded with --load.

Examples:
  recordkit get Model 1
  recordkit get Model 1 --load submodel --format table`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(g)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			r, err := fetch(ctx, s, args[0], args[1])
			if err != nil {
				return err
			}
			for _, name := range load {
				if err := r.Load(ctx, name); err != nil {
					return err
				}
			}
			if err := r.Commit(ctx); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if format == "table" {
				kv := ui.NewKeyValueTable(w, g.noColor)
				values := r.Value()
				for _, name := range columns(r.Schema()) {
					kv.AddRow(name, formatCell(values[name]))
				}
				kv.Render()
				return nil
			}
			return writeJSON(w, r)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format: json or table")
	cmd.Flags().StringSliceVarP(&load, "load", "l", nil, "Nested fields to load before printing")
	return cmd
}

func newListCommand(g *globalOptions) *cobra.Command {
	var (
		format string
		where  []string
		order  []string
		rawSQL string
	)

	cmd := &cobra.Command{
		Use:   "list <record>",
		Short: "List the rows of a record",
		Long: `List rows in store order, optionally filtered by equality on columns.

Examples:
  recordkit list Model
  recordkit list Model --where lastname=Doe --order firstname
  recordkit list Model --sql "SELECT * FROM model WHERE age > ?" --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(g)
			if err != nil {
				return err
			}
			defer s.Close()

			rs, err := lookup(s.registry, args[0])
			if err != nil {
				return err
			}
			filter, err := parseFilter(rs, where)
			if err != nil {
				return err
			}
			for _, name := range order {
				if !rs.Has(name) {
					return fmt.Errorf("%s has no column %q", rs.Name, name)
				}
			}

			ctx := cmd.Context()
			c := record.NewCollection(rs, s.options()...)
			q := &port.Query{Filter: filter, OrderBy: order, SQL: rawSQL}
			if err := c.Query(ctx, q); err != nil {
				return err
			}
			if err := c.Commit(ctx); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if format == "json" {
				return writeJSON(w, c)
			}
			cols := columns(rs)
			table := ui.NewTable(w, cols, &ui.TableOptions{NoColor: g.noColor, MaxWidth: 40})
			for _, r := range c.All() {
				values := r.Value()
				cells := make([]string, len(cols))
				for i, name := range cols {
					cells[i] = formatCell(values[name])
				}
				table.AddRow(cells...)
			}
			table.Render()
			fmt.Fprintf(w, "\n%d %s\n", c.Len(), plural("row", c.Len()))
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: json or table")
	cmd.Flags().StringArrayVarP(&where, "where", "w", nil, "Filter as column=value, repeatable")
	cmd.Flags().StringSliceVarP(&order, "order", "o", nil, "Columns to sort by")
	cmd.Flags().StringVar(&rawSQL, "sql", "", "Raw SQL query, SQL stores only")
	return cmd
}

func newPutCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "put <record> <file|->",
		Short: "Insert or update records from JSON",
		Long: `Write a JSON object, or an array of objects, to the store. An object that
carries the primary key of an existing row updates that row; only the
changed columns are written. Everything is committed in one unit of work
and rolled back if any record fails validation.

Examples:
  recordkit put Model person.json
  echo '{"id":1,"lastname":"Roe"}' | recordkit put Model -`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(g)
			if err != nil {
				return err
			}
			defer s.Close()

			rs, err := lookup(s.registry, args[0])
			if err != nil {
				return err
			}
			data, err := readInput(cmd.InOrStdin(), args[1])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			docs := []json.RawMessage{data}
			if isArray(data) {
				if err := json.Unmarshal(data, &docs); err != nil {
					return fmt.Errorf("invalid JSON: %w", err)
				}
			}

			saved := make([]*record.Record, 0, len(docs))
			for i, doc := range docs {
				r, err := upsert(ctx, s, rs, doc)
				if err != nil {
					if len(docs) > 1 {
						err = fmt.Errorf("element %d: %w", i, err)
					}
					return err
				}
				saved = append(saved, r)
			}
			if len(saved) > 0 {
				if err := saved[0].Commit(ctx); err != nil {
					return err
				}
			}

			w := cmd.OutOrStdout()
			for _, r := range saved {
				ui.WriteSuccess(w, fmt.Sprintf("saved %s %v", rs.Name, r.ID()), g.noColor)
			}
			return nil
		},
	}
}

func newDeleteCommand(g *globalOptions, ask askFunc) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <record> <id>",
		Short: "Delete one record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(g)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			r, err := fetch(ctx, s, args[0], args[1])
			if err != nil {
				return err
			}

			if !yes {
				confirmed := false
				prompt := &survey.Confirm{
					Message: fmt.Sprintf("Delete %s %v?", r.Schema().Name, r.ID()),
				}
				if err := ask(prompt, &confirmed); err != nil {
					return err
				}
				if !confirmed {
					fmt.Fprintln(cmd.OutOrStdout(), "aborted")
					return r.Rollback(ctx)
				}
			}

			id := r.ID()
			if err := r.Delete(ctx); err != nil {
				return rollback(ctx, r, err)
			}
			if err := r.Commit(ctx); err != nil {
				return err
			}
			ui.WriteSuccess(cmd.OutOrStdout(), fmt.Sprintf("deleted %s %v", r.Schema().Name, id), g.noColor)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

// fetch queries one record by id and fails when no row matches
func fetch(ctx context.Context, s *session, name, arg string) (*record.Record, error) {
	rs, err := lookup(s.registry, name)
	if err != nil {
		return nil, err
	}
	id, err := parseID(rs, arg)
	if err != nil {
		return nil, err
	}

	opts := append(s.options(), record.WithID(id))
	r := record.New(rs, opts...)
	if err := r.Query(ctx, nil); err != nil {
		return nil, err
	}
	if !r.Loaded() {
		return nil, &notFoundError{record: rs.Name, id: id}
	}
	return r, nil
}

// upsert writes one JSON object. When the object names an existing row by
// primary key, that row is loaded first so only what differs is written.
// A new row is validated completely before anything reaches the store.
func upsert(ctx context.Context, s *session, rs *schema.RecordSchema, data []byte) (*record.Record, error) {
	var probe map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&probe); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	opts := s.options()
	if v, ok := probe[rs.PrimaryKey]; ok && v != nil {
		opts = append(opts, record.WithID(port.Normalize(rs.PrimaryKeyField(), v)))
	}
	r := record.New(rs, opts...)
	if err := r.Query(ctx, nil); err != nil {
		return nil, rollback(ctx, r, err)
	}

	if !r.Loaded() {
		dry := record.New(rs, record.WithLogger(s.logger))
		if err := serialize.FromJSON(ctx, dry, data); err != nil {
			return nil, rollback(ctx, r, err)
		}
		if err := dry.Check(); err != nil {
			return nil, rollback(ctx, r, err)
		}
	}

	if err := serialize.FromJSON(ctx, r, data); err != nil {
		return nil, rollback(ctx, r, err)
	}
	if err := r.Check(); err != nil {
		return nil, rollback(ctx, r, err)
	}
	return r, nil
}

type rollbacker interface {
	Rollback(ctx context.Context) error
}

// rollback discards the unit of work and returns cause
func rollback(ctx context.Context, rb rollbacker, cause error) error {
	if err := rb.Rollback(ctx); err != nil {
		return fmt.Errorf("%w (rollback failed: %v)", cause, err)
	}
	return cause
}

func writeJSON(w io.Writer, v interface{}) error {
	data, err := serialize.ToJSON(v)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return err
	}
	buf.WriteByte('\n')
	_, err = buf.WriteTo(w)
	return err
}

func isArray(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '['
}

func plural(word string, n int) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
