package config

import (
	"fmt"
	"slices"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks that the configuration is internally consistent.
// Struct tag constraints are checked first, then cross-field rules
// that tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok {
			return fmt.Errorf("invalid value for %s (constraint: %s)",
				errs[0].Namespace(), errs[0].Tag())
		}
		return err
	}

	if slices.Contains(cfg.SASL.EnabledMechanisms, "GSSAPI") {
		if cfg.Kerberos.KeytabPath == "" {
			return fmt.Errorf("kerberos.keytab_path is required when GSSAPI is enabled")
		}
		if cfg.Kerberos.ServicePrincipal == "" {
			return fmt.Errorf("kerberos.service_principal is required when GSSAPI is enabled")
		}
	}

	if cfg.Store.Backend == "badger" && cfg.Store.Path == "" {
		return fmt.Errorf("store.path is required for the badger backend")
	}

	if seen := duplicateMechanism(cfg.SASL.EnabledMechanisms); seen != "" {
		return fmt.Errorf("mechanism %s listed more than once in sasl.enabled_mechanisms", seen)
	}

	return nil
}

func duplicateMechanism(mechanisms []string) string {
	seen := make(map[string]bool, len(mechanisms))
	for _, m := range mechanisms {
		if seen[m] {
			return m
		}
		seen[m] = true
	}
	return ""
}
