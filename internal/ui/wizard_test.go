package ui

import (
	"testing"

	"cda/pkg/models"
	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/core"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedAsker answers prompts by question name (Ask) or prompt message (AskOne)
type scriptedAsker struct {
	answers map[string]interface{}
	asked   []string
	err     error
}

func (s *scriptedAsker) Ask(qs []*survey.Question, response interface{}, _ ...survey.AskOpt) error {
	if s.err != nil {
		return s.err
	}
	for _, q := range qs {
		s.asked = append(s.asked, q.Name)
		if v, ok := s.answers[q.Name]; ok {
			if err := core.WriteAnswer(response, q.Name, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *scriptedAsker) AskOne(p survey.Prompt, response interface{}, _ ...survey.AskOpt) error {
	if s.err != nil {
		return s.err
	}
	var message string
	switch prompt := p.(type) {
	case *survey.Input:
		message = prompt.Message
	case *survey.Select:
		message = prompt.Message
	case *survey.Confirm:
		message = prompt.Message
	}
	s.asked = append(s.asked, message)
	if v, ok := s.answers[message]; ok {
		return core.WriteAnswer(response, "", v)
	}
	return nil
}

func TestConfigWizardLocalSetup(t *testing.T) {
	captureOutput(t)
	asker := &scriptedAsker{answers: map[string]interface{}{
		"client": "acme",
		"seed":   "./seeds/ground_truth.csv",
		"Where do raw landing records live?": "local",
		"Landing directory:":                 "./landing",
		"Write derived tables to Snowflake?": false,
		"Output directory:":                  "./marts",
		"Save this configuration?":           true,
	}}

	cfg, err := NewConfigWizardWithAsker(asker).Run(models.DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, "acme", cfg.ClientName)
	assert.Equal(t, "./seeds/ground_truth.csv", cfg.Seed.Path)
	assert.Equal(t, "local", cfg.Source.Type)
	assert.Equal(t, "./landing", cfg.Source.Path)
	assert.Equal(t, "local", cfg.Output.Type)
	assert.Equal(t, "./marts", cfg.Output.Path)
	assert.Empty(t, cfg.Snowflake.Account)
}

func TestConfigWizardSnowflakeSetup(t *testing.T) {
	captureOutput(t)
	asker := &scriptedAsker{answers: map[string]interface{}{
		"client":                             "globex",
		"Where do raw landing records live?": "snowflake",
		"account":                            "xy12345.eu-west-2",
		"username":                           "cda",
		"password":                           "secret",
		"warehouse":                          "TRANSFORM_WH",
		"database":                           "ANALYTICS",
		"rawSchema":                          "LANDING",
		"Output schema:":                     "GLOBEX_MARTS",
		"Save this configuration?":           true,
	}}

	cfg, err := NewConfigWizardWithAsker(asker).Run(models.DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, "snowflake", cfg.Source.Type)
	assert.Equal(t, "snowflake", cfg.Output.Type)
	assert.Equal(t, "GLOBEX_MARTS", cfg.Output.Schema)
	assert.Equal(t, "secret", cfg.Snowflake.Password)
	assert.Equal(t, "LANDING", cfg.Snowflake.RawSchema)
	assert.NotContains(t, asker.asked, "Write derived tables to Snowflake?")
}

func TestConfigWizardCancelled(t *testing.T) {
	captureOutput(t)

	_, err := NewConfigWizardWithAsker(&scriptedAsker{err: terminal.InterruptErr}).Run(models.DefaultConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cancelled")

	asker := &scriptedAsker{answers: map[string]interface{}{
		"client":                   "acme",
		"Landing directory:":       "./landing",
		"Output directory:":        "./out",
		"Save this configuration?": false,
	}}
	_, err = NewConfigWizardWithAsker(asker).Run(models.DefaultConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cancelled")
}
