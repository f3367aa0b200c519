package commands

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/recordkit/internal/cli/ui"
	"github.com/conduit-lang/recordkit/internal/orm/validation"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

// globalOptions holds the persistent flags shared by every subcommand
type globalOptions struct {
	configFile string
	schemaFile string
	noColor    bool
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	g := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "recordkit",
		Short: "Declarative record mapping from the command line",
		Long: color.CyanString(`recordkit - declarative record mapping

Records are declared once in a schema file and mapped onto a store.
Every write is validated field by field and reconciled as an insert
or update of only the changed columns.

Stores:
  • memory   (default, nothing persists between runs)
  • sqlite3  (mattn/go-sqlite3)
  • pgx      (PostgreSQL through jackc/pgx)
  • postgres (PostgreSQL through lib/pq)
  • redis    (rows as JSON in one hash per table)`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if g.noColor {
				color.NoColor = true
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&g.configFile, "config", "c", "", "Config file (default: recordkit.yaml in this or a parent directory)")
	rootCmd.PersistentFlags().StringVarP(&g.schemaFile, "schema", "s", "", "Schema file, overrides the config")
	rootCmd.PersistentFlags().BoolVar(&g.noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(newSchemaCommand(g))
	rootCmd.AddCommand(newValidateCommand(g))
	rootCmd.AddCommand(newGetCommand(g))
	rootCmd.AddCommand(newListCommand(g))
	rootCmd.AddCommand(newPutCommand(g))
	rootCmd.AddCommand(newDeleteCommand(g, surveyAsk))
	rootCmd.AddCommand(newNewCommand(g, surveyAsk))

	for _, sub := range rootCmd.Commands() {
		if sub.Args != nil && sub.Name() != "version" {
			sub.ValidArgsFunction = completeRecord(g)
		}
	}
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display the recordkit version, Git commit, build date, and Go version",
		Run: func(cmd *cobra.Command, args []string) {
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			w := cmd.OutOrStdout()
			titleColor := color.New(color.FgCyan, color.Bold)
			valueColor := color.New(color.FgWhite)

			for _, line := range [][2]string{
				{"recordkit version: ", Version},
				{"Git commit: ", GitCommit},
				{"Build date: ", BuildDate},
				{"Go version: ", goVer},
			} {
				titleColor.Fprint(w, line[0])
				valueColor.Fprintln(w, line[1])
			}
		},
	}
}

// Execute runs the root command
func Execute() error {
	return execute(NewRootCommand())
}

func execute(rootCmd *cobra.Command) error {
	err := rootCmd.Execute()
	if err == nil {
		return nil
	}

	noColor, _ := rootCmd.PersistentFlags().GetBool("no-color")
	w := rootCmd.ErrOrStderr()

	var unknown *unknownRecordError
	var missing *notFoundError
	var cfgErr *configError
	var verrs *validation.Errors
	var ferr *validation.FieldError
	switch {
	case errors.As(err, &unknown):
		fmt.Fprint(w, ui.UnknownRecordError(unknown.name, unknown.suggestions, noColor))
	case errors.As(err, &missing):
		fmt.Fprint(w, ui.NotFoundError(missing.record, missing.id, noColor))
	case errors.As(err, &cfgErr):
		fmt.Fprint(w, ui.ConfigError(cfgErr.Error(), noColor))
	case errors.As(err, &verrs):
		fmt.Fprint(w, ui.ValidationError(verrs.Fields, noColor))
	case errors.As(err, &ferr):
		fmt.Fprint(w, ui.ValidationError(map[string][]string{ferr.Field: {ferr.Description}}, noColor))
	default:
		errorColor := color.New(color.FgRed, color.Bold)
		if noColor {
			errorColor.DisableColor()
		}
		errorColor.Fprintf(w, "Error: %v\n", err)
	}
	return err
}
