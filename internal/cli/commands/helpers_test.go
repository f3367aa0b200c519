package commands

import (
	"bytes"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AlecAivazis/survey/v2"
	"github.com/stretchr/testify/require"
)

const testSchema = `
records:
  - name: Model
    table: model
    fields:
      - name: firstname
        type: text
        required: true
        max_length: 64
        label: First name
      - name: lastname
        type: text
        required: true
      - name: role
        type: text
        choices:
          - value: admin
            label: Administrator
          - value: user
      - name: submodel
        type: record
        record: SubModel
  - name: SubModel
    table: submodel
    fields:
      - name: age
        type: integer
        required: true
        minimum: 0
        maximum: 150
`

// project is a temporary directory holding a schema, a config and a SQLite
// database with the tables of the schema
type project struct {
	dir string
	db  *sql.DB
}

func newProject(t *testing.T) *project {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "records.db")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema.yaml"), []byte(testSchema), 0644))
	config := "schema: schema.yaml\nstore:\n  driver: sqlite3\n  url: " + dbPath + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "recordkit.yaml"), []byte(config), 0644))

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE model (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			firstname TEXT NOT NULL,
			lastname TEXT NOT NULL,
			role TEXT,
			submodel INTEGER
		);
		CREATE TABLE submodel (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			age INTEGER NOT NULL
		);
	`)
	require.NoError(t, err)
	return &project{dir: dir, db: db}
}

func (p *project) write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(p.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func (p *project) count(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, p.db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

type result struct {
	stdout string
	stderr string
	err    error
}

// run executes the CLI against the project with stdin as input
func (p *project) run(stdin string, args ...string) result {
	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--no-color", "--config", filepath.Join(p.dir, "recordkit.yaml")}, args...))

	err := execute(cmd)
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

// scripted answers survey prompts by message
func scripted(answers map[string]interface{}) askFunc {
	return func(p survey.Prompt, response interface{}, opts ...survey.AskOpt) error {
		var message string
		switch q := p.(type) {
		case *survey.Input:
			message = q.Message
		case *survey.Multiline:
			message = q.Message
		case *survey.Password:
			message = q.Message
		case *survey.Select:
			message = q.Message
		case *survey.Confirm:
			message = q.Message
		}

		answer, ok := answers[message]
		if !ok {
			return nil
		}
		switch r := response.(type) {
		case *string:
			*r = answer.(string)
		case *bool:
			*r = answer.(bool)
		}
		return nil
	}
}

// withAsk replaces the terminal prompt for the duration of a test
func withAsk(t *testing.T, ask askFunc) {
	t.Helper()
	saved := surveyAsk
	surveyAsk = ask
	t.Cleanup(func() { surveyAsk = saved })
}
