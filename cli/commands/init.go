package commands

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/AlecAivazis/survey/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/expreql/expreql/cli/internal/config"
	"github.com/expreql/expreql/cli/internal/ui"
)

const sampleEntities = `version: "1.1"
entities:
  - name: Exercise
    table: exercises
    primary_key: id
    fields: [id, title, state]
    has_many:
      Question: exercises_id
      Fulfillment: exercises_id
  - name: Question
    table: questions
    primary_key: id
    fields: [id, label, type, exercises_id]
  - name: Fulfillment
    table: fulfillments
    primary_key: id
    fields: [id, created_at, exercises_id]
    has_many:
      Response: fulfillments_id
  - name: Response
    table: responses
    primary_key: id
    fields: [id, text, questions_id, fulfillments_id]
    belongs_to:
      Question: questions_id
`

type initAnswers struct {
	Host       string `survey:"host"`
	Port       string `survey:"port"`
	Database   string `survey:"database"`
	User       string `survey:"user"`
	Password   string `survey:"password"`
	SchemaPath string `survey:"schema_path"`
}

func newInitCommand(opts *options) *cobra.Command {
	var (
		yes    bool
		output string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a config file and a sample entity file",
		Long: `Ask for the MySQL connection settings and write them to .expreql.yaml.
The password goes to .env as EXPREQL_PASSWORD rather than the config file.
A sample entity file is created when none exists.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			cfg := *opts.cfg
			answers := initAnswers{
				Host:       cfg.Host,
				Port:       strconv.Itoa(cfg.Port),
				Database:   cfg.Database,
				User:       cfg.User,
				Password:   cfg.Password,
				SchemaPath: cfg.SchemaPath,
			}
			if !yes {
				ui.PrintHeader(out, "expreql", "Initialize project")
				if err := survey.Ask(initQuestions(answers), &answers); err != nil {
					return err
				}
			}

			port, err := strconv.Atoi(answers.Port)
			if err != nil {
				return fmt.Errorf("port %q: %w", answers.Port, err)
			}
			cfg.Host = answers.Host
			cfg.Port = port
			cfg.Database = answers.Database
			cfg.User = answers.User
			cfg.Password = answers.Password
			cfg.SchemaPath = answers.SchemaPath

			path, err := config.SaveConfig(&cfg, output)
			if err != nil {
				return err
			}
			ui.PrintSuccess(out, "Wrote %s", path)

			if cfg.Password != "" {
				if err := writeEnv("EXPREQL_PASSWORD", cfg.Password); err != nil {
					return err
				}
				ui.PrintSuccess(out, "Stored the password in .env")
			}

			created, err := writeIfMissing(cfg.SchemaPath, sampleEntities)
			if err != nil {
				return err
			}
			if created {
				ui.PrintSuccess(out, "Created sample entity file %s", cfg.SchemaPath)
			} else {
				ui.PrintInfo(out, "Keeping existing entity file %s", cfg.SchemaPath)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Accept the configured values without prompting")
	cmd.Flags().StringVar(&output, "output", config.FileName+".yaml", "Config file to write")
	return cmd
}

func initQuestions(def initAnswers) []*survey.Question {
	return []*survey.Question{
		{Name: "host", Prompt: &survey.Input{Message: "MySQL host", Default: def.Host}},
		{
			Name:   "port",
			Prompt: &survey.Input{Message: "Port", Default: def.Port},
			Validate: func(ans any) error {
				if _, err := strconv.Atoi(fmt.Sprint(ans)); err != nil {
					return errors.New("port must be a number")
				}
				return nil
			},
		},
		{Name: "database", Prompt: &survey.Input{Message: "Database", Default: def.Database}, Validate: survey.Required},
		{Name: "user", Prompt: &survey.Input{Message: "User", Default: def.User}},
		{Name: "password", Prompt: &survey.Password{Message: "Password (stored in .env)"}},
		{Name: "schema_path", Prompt: &survey.Input{Message: "Entity file", Default: def.SchemaPath}},
	}
}

// writeEnv sets key in .env, keeping the other variables already there.
func writeEnv(key, value string) error {
	env := map[string]string{}
	if data, err := afero.ReadFile(config.AppFs, ".env"); err == nil {
		if env, err = godotenv.Unmarshal(string(data)); err != nil {
			return fmt.Errorf("parse .env: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	env[key] = value

	content, err := godotenv.Marshal(env)
	if err != nil {
		return err
	}
	return afero.WriteFile(config.AppFs, ".env", []byte(content+"\n"), 0o600)
}

func writeIfMissing(path, content string) (bool, error) {
	exists, err := afero.Exists(config.AppFs, path)
	if err != nil || exists {
		return false, err
	}
	return true, afero.WriteFile(config.AppFs, path, []byte(content), 0o644)
}
