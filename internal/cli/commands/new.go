package commands

import (
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/recordkit/internal/cli/ui"
	"github.com/conduit-lang/recordkit/internal/orm/record"
	"github.com/conduit-lang/recordkit/internal/orm/schema"
	"github.com/conduit-lang/recordkit/internal/orm/validation"
)

// askFunc has the signature of survey.AskOne
type askFunc func(p survey.Prompt, response interface{}, opts ...survey.AskOpt) error

// surveyAsk prompts on the terminal
var surveyAsk askFunc = survey.AskOne

func newNewCommand(g *globalOptions, ask askFunc) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "new <record>",
		Short: "Create a record through an interactive form",
		Long: `Prompt for every editable field of a record, validating each answer as it
is typed, then insert the record.

Fields with choices become a selection, booleans a yes/no question and
passwords are read without echo. Hidden, readonly and nested fields are
not prompted for.

Examples:
  recordkit new Model
  recordkit new Model --dry-run`,
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

			values, err := (&form{schema: rs, ask: ask}).run()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			w := cmd.OutOrStdout()

			dry := record.New(rs, record.WithLogger(s.logger))
			if err := dry.Assign(ctx, values); err != nil {
				return err
			}
			if err := dry.Check(); err != nil {
				return err
			}
			if dryRun {
				return writeJSON(w, dry)
			}

			r := record.New(rs, s.options()...)
			if err := r.Assign(ctx, values); err != nil {
				return rollback(ctx, r, err)
			}
			if err := r.Commit(ctx); err != nil {
				return err
			}
			ui.WriteSuccess(w, fmt.Sprintf("created %s %v", rs.Name, r.ID()), g.noColor)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the record instead of saving it")
	return cmd
}

// form asks for the editable fields of a record in declaration order
type form struct {
	schema *schema.RecordSchema
	ask    askFunc
}

// prompted reports whether the form asks for f
func prompted(rs *schema.RecordSchema, f *schema.FieldSpec) bool {
	if f.Hidden || f.Readonly || f.Kind.IsNested() {
		return false
	}
	// store generated keys are not typed in
	return f.Name != rs.PrimaryKey || f.Kind == schema.KindUUID || f.Kind == schema.KindText
}

func (fm *form) run() (map[string]interface{}, error) {
	values := make(map[string]interface{})
	for _, f := range fm.schema.Fields() {
		if !prompted(fm.schema, f) {
			continue
		}
		v, err := fm.field(f)
		if err != nil {
			return nil, err
		}
		if v != nil {
			values[f.Name] = v
		}
	}
	return values, nil
}

func label(f *schema.FieldSpec) string {
	md := f.Metadata()
	text := md.Label
	if text == "" {
		text = md.Name
	}
	if md.Prefix != "" || md.Suffix != "" {
		text = fmt.Sprintf("%s (%s…%s)", text, md.Prefix, md.Suffix)
	}
	if md.Required {
		text += " *"
	}
	return text
}

func (fm *form) field(f *schema.FieldSpec) (interface{}, error) {
	md := f.Metadata()
	message := label(f)

	switch {
	case f.HasChoices():
		options := make([]string, len(md.Choices))
		for i, c := range md.Choices {
			options[i] = choiceLabel(c)
		}
		prompt := &survey.Select{Message: message, Options: options}
		if f.Default != nil {
			for i, c := range md.Choices {
				if fmt.Sprint(c.Value) == fmt.Sprint(f.Default) {
					prompt.Default = options[i]
				}
			}
		}
		var picked string
		if err := fm.ask(prompt, &picked); err != nil {
			return nil, err
		}
		if picked == "" {
			return nil, nil
		}
		for i, option := range options {
			if option == picked {
				return md.Choices[i].Value, nil
			}
		}
		return nil, fmt.Errorf("%s: %q is not a choice", f.Name, picked)

	case f.Kind == schema.KindBool:
		answer := false
		if b, ok := f.Default.(bool); ok {
			answer = b
		}
		prompt := &survey.Confirm{Message: message, Default: answer}
		if err := fm.ask(prompt, &answer); err != nil {
			return nil, err
		}
		return answer, nil

	case f.Kind == schema.KindPassword:
		var text string
		prompt := &survey.Password{Message: message}
		if err := fm.ask(prompt, &text, survey.WithValidator(fieldValidator(f))); err != nil {
			return nil, err
		}
		return parseValue(f, text)

	default:
		var prompt survey.Prompt
		if md.Rows > 1 {
			prompt = &survey.Multiline{Message: message, Help: md.Placeholder}
		} else {
			input := &survey.Input{Message: message, Help: md.Placeholder}
			if f.Default != nil {
				input.Default = fmt.Sprint(f.Default)
			}
			prompt = input
		}
		var text string
		if err := fm.ask(prompt, &text, survey.WithValidator(fieldValidator(f))); err != nil {
			return nil, err
		}
		return parseValue(f, text)
	}
}

func choiceLabel(c schema.Choice) string {
	if c.Label != "" {
		return c.Label
	}
	return fmt.Sprint(c.Value)
}

// fieldValidator checks an answer with the field's own rules so that a bad
// value is asked again instead of failing the whole form
func fieldValidator(f *schema.FieldSpec) survey.Validator {
	return func(ans interface{}) error {
		text, _ := ans.(string)
		if text == "" {
			if f.Required {
				return fmt.Errorf("%s is required", f.Name)
			}
			return nil
		}
		v, err := parseValue(f, text)
		if err != nil {
			return err
		}
		if f.Kind == schema.KindPassword {
			// hashing happens on assignment
			_, err = validation.New(func(s string) (string, error) { return s, nil }).Validate(f, v)
		} else {
			_, err = validation.Validate(f, v)
		}
		return err
	}
}
