package ui

import (
	"fmt"
	"strings"

	"cda/pkg/errors"
	"cda/pkg/models"
	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
)

// Asker abstracts survey so the wizard can be driven from tests
type Asker interface {
	Ask(qs []*survey.Question, response interface{}, opts ...survey.AskOpt) error
	AskOne(p survey.Prompt, response interface{}, opts ...survey.AskOpt) error
}

type surveyAsker struct{}

func (surveyAsker) Ask(qs []*survey.Question, response interface{}, opts ...survey.AskOpt) error {
	return survey.Ask(qs, response, opts...)
}

func (surveyAsker) AskOne(p survey.Prompt, response interface{}, opts ...survey.AskOpt) error {
	return survey.AskOne(p, response, opts...)
}

// ConfigWizard provides an interactive configuration setup
type ConfigWizard struct {
	asker       Asker
	currentStep int
	totalSteps  int
}

// NewConfigWizard creates a wizard backed by the terminal
func NewConfigWizard() *ConfigWizard {
	return NewConfigWizardWithAsker(surveyAsker{})
}

// NewConfigWizardWithAsker creates a wizard with a custom prompt backend
func NewConfigWizardWithAsker(asker Asker) *ConfigWizard {
	return &ConfigWizard{asker: asker, currentStep: 1, totalSteps: 5}
}

// Run walks through every step, starting from base. The returned config still holds
// the plain password; the caller decides whether it goes to the keyring.
func (w *ConfigWizard) Run(base models.Config) (*models.Config, error) {
	ShowHeader("Customer Data Analytics - Setup")

	config := base
	steps := []func(*models.Config) error{
		w.tenantStep,
		w.sourceStep,
		w.snowflakeStep,
		w.outputStep,
		w.reviewStep,
	}
	for _, step := range steps {
		if err := step(&config); err != nil {
			if err == terminal.InterruptErr {
				return nil, errors.New(errors.ErrCodeInvalidInput, "Configuration cancelled")
			}
			return nil, err
		}
		w.currentStep++
	}
	return &config, nil
}

func (w *ConfigWizard) tenantStep(config *models.Config) error {
	w.showProgress("Tenant")

	questions := []*survey.Question{
		{
			Name: "client",
			Prompt: &survey.Input{
				Message: "Client name:",
				Default: config.ClientName,
				Help:    "Used for the output schema (<CLIENT>_MARTS) and the query tag",
			},
			Validate: survey.Required,
		},
		{
			Name: "seed",
			Prompt: &survey.Input{
				Message: "Ground-truth seed CSV (blank to read it from Snowflake):",
				Default: config.Seed.Path,
			},
		},
	}
	answers := struct {
		Client string
		Seed   string
	}{}
	if err := w.asker.Ask(questions, &answers); err != nil {
		return err
	}
	config.ClientName = strings.TrimSpace(answers.Client)
	config.Seed.Path = strings.TrimSpace(answers.Seed)
	return nil
}

func (w *ConfigWizard) sourceStep(config *models.Config) error {
	w.showProgress("Landing source")

	sourceType := config.Source.Type
	if err := w.asker.AskOne(&survey.Select{
		Message: "Where do raw landing records live?",
		Options: []string{"local", "s3", "snowflake"},
		Default: valueOr(sourceType, "local"),
	}, &sourceType); err != nil {
		return err
	}
	config.Source.Type = sourceType

	switch sourceType {
	case "local":
		return w.asker.AskOne(&survey.Input{
			Message: "Landing directory:",
			Default: config.Source.Path,
		}, &config.Source.Path, survey.WithValidator(survey.Required))
	case "s3":
		questions := []*survey.Question{
			{Name: "bucket", Prompt: &survey.Input{Message: "Bucket:", Default: config.Source.Bucket}, Validate: survey.Required},
			{Name: "prefix", Prompt: &survey.Input{Message: "Key prefix:", Default: config.Source.Prefix}},
			{Name: "region", Prompt: &survey.Input{Message: "Region:", Default: valueOr(config.Source.Region, "eu-west-2")}},
			{Name: "profile", Prompt: &survey.Input{Message: "AWS profile (blank for default chain):", Default: config.Source.Profile}},
		}
		answers := struct {
			Bucket, Prefix, Region, Profile string
		}{}
		if err := w.asker.Ask(questions, &answers); err != nil {
			return err
		}
		config.Source.Bucket = answers.Bucket
		config.Source.Prefix = answers.Prefix
		config.Source.Region = answers.Region
		config.Source.Profile = answers.Profile
	}
	return nil
}

func (w *ConfigWizard) snowflakeStep(config *models.Config) error {
	w.showProgress("Snowflake")

	use := config.Source.Type == "snowflake"
	if !use {
		if err := w.asker.AskOne(&survey.Confirm{
			Message: "Write derived tables to Snowflake?",
			Default: config.Output.Type == "snowflake",
		}, &use); err != nil {
			return err
		}
	}
	if !use {
		return nil
	}

	sf := config.Snowflake
	questions := []*survey.Question{
		{Name: "account", Prompt: &survey.Input{Message: "Account:", Default: sf.Account, Help: "e.g. xy12345.eu-west-2"}, Validate: survey.Required},
		{Name: "username", Prompt: &survey.Input{Message: "Username:", Default: sf.Username}, Validate: survey.Required},
		{Name: "password", Prompt: &survey.Password{Message: "Password:", Help: "Stored in the system keyring"}, Validate: survey.Required},
		{Name: "role", Prompt: &survey.Input{Message: "Role:", Default: valueOr(sf.Role, "TRANSFORMER")}},
		{Name: "warehouse", Prompt: &survey.Input{Message: "Warehouse:", Default: valueOr(sf.Warehouse, "TRANSFORM_WH")}, Validate: survey.Required},
		{Name: "database", Prompt: &survey.Input{Message: "Database:", Default: valueOr(sf.Database, "ANALYTICS")}, Validate: survey.Required},
		{Name: "rawSchema", Prompt: &survey.Input{Message: "Raw landing schema:", Default: valueOr(sf.RawSchema, "RAW")}},
	}
	answers := struct {
		Account   string
		Username  string
		Password  string
		Role      string
		Warehouse string
		Database  string
		RawSchema string `survey:"rawSchema"`
	}{}
	if err := w.asker.Ask(questions, &answers); err != nil {
		return err
	}

	sf.Account = answers.Account
	sf.Username = answers.Username
	sf.Password = answers.Password
	sf.Role = answers.Role
	sf.Warehouse = answers.Warehouse
	sf.Database = answers.Database
	sf.RawSchema = answers.RawSchema
	config.Snowflake = sf
	config.Output.Type = "snowflake"
	return nil
}

func (w *ConfigWizard) outputStep(config *models.Config) error {
	w.showProgress("Output")

	if config.Output.Type == "snowflake" {
		return w.asker.AskOne(&survey.Input{
			Message: "Output schema:",
			Default: config.OutputSchema(),
		}, &config.Output.Schema)
	}

	config.Output.Type = "local"
	return w.asker.AskOne(&survey.Input{
		Message: "Output directory:",
		Default: valueOr(config.Output.Path, "./out"),
	}, &config.Output.Path, survey.WithValidator(survey.Required))
}

func (w *ConfigWizard) reviewStep(config *models.Config) error {
	w.showProgress("Review")

	PrintSection("Configuration Summary")
	PrintKeyValue("Client", config.ClientName)
	PrintKeyValue("Source", describeSource(config.Source))
	PrintKeyValue("Output", describeOutput(*config))
	PrintKeyValue("Seed", valueOr(config.Seed.Path, config.Snowflake.SeedTable))
	if config.Snowflake.Account != "" {
		PrintKeyValue("Snowflake", fmt.Sprintf("%s@%s (%s)", config.Snowflake.Username, config.Snowflake.Account, config.Snowflake.Warehouse))
	}

	confirm := false
	if err := w.asker.AskOne(&survey.Confirm{Message: "Save this configuration?", Default: true}, &confirm); err != nil {
		return err
	}
	if !confirm {
		return errors.New(errors.ErrCodeInvalidInput, "Configuration cancelled")
	}
	return nil
}

func (w *ConfigWizard) showProgress(step string) {
	fmt.Fprintf(Output, "\n%s [Step %d/%d] %s\n\n",
		ColorProgress("►"),
		w.currentStep,
		w.totalSteps,
		ColorBold(step),
	)
}

func describeSource(s models.Source) string {
	switch s.Type {
	case "s3":
		return fmt.Sprintf("s3://%s/%s (%s)", s.Bucket, s.Prefix, s.Region)
	case "snowflake":
		return "snowflake raw schema"
	default:
		return s.Path
	}
}

func describeOutput(c models.Config) string {
	if c.Output.Type == "snowflake" {
		return c.Snowflake.Database + "." + c.OutputSchema()
	}
	return c.Output.Path
}
