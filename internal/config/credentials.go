package config

import (
	"fmt"

	"cda/pkg/errors"
	"cda/pkg/models"
	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name passwords are stored under
	KeyringService = "cda"
	// KeyringRef in snowflake.password means "look the password up in the OS keyring"
	KeyringRef = "@keyring"
)

func keyringAccount(sf models.Snowflake) string {
	return fmt.Sprintf("%s/%s", sf.Account, sf.Username)
}

// StorePassword saves the Snowflake password in the OS keyring and replaces it with KeyringRef
func StorePassword(sf *models.Snowflake) error {
	if sf.Password == "" || sf.Password == KeyringRef {
		return nil
	}
	if err := keyring.Set(KeyringService, keyringAccount(*sf), sf.Password); err != nil {
		return errors.Wrap(err, errors.ErrCodeCredentialLookup, "Failed to store password in keyring").
			WithContext("account", sf.Account)
	}
	sf.Password = KeyringRef
	return nil
}

// ResolveSecrets replaces a KeyringRef password with the stored secret
func ResolveSecrets(cfg *models.Config) error {
	if cfg.Snowflake.Password != KeyringRef {
		return nil
	}

	secret, err := keyring.Get(KeyringService, keyringAccount(cfg.Snowflake))
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCredentialLookup, "Failed to read password from keyring").
			WithContext("account", cfg.Snowflake.Account).
			WithContext("username", cfg.Snowflake.Username).
			WithSuggestions("Run 'cda setup' to store the password again")
	}

	cfg.Snowflake.Password = secret
	return nil
}

// Masked returns a copy of cfg that is safe to print
func Masked(cfg models.Config) models.Config {
	if cfg.Snowflake.Password != "" && cfg.Snowflake.Password != KeyringRef {
		cfg.Snowflake.Password = "********"
	}
	return cfg
}
