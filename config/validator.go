// config/validator.go
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/consts"
)

// Validator 配置验证器
type Validator struct{}

// NewValidator 创建配置验证器
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAppConfig checks the sections every application needs. Component
// sections are validated by their own factories.
func (v *Validator) ValidateAppConfig(config *AppConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if config.APPInfo == nil {
		return fmt.Errorf("app_info section is required")
	}
	if config.APPInfo.APPName == "" {
		return fmt.Errorf("app_info.app_name is required")
	}
	if err := v.validateEnv(config.APPInfo.ENV); err != nil {
		return fmt.Errorf("app_info.env: %w", err)
	}
	return nil
}

func (v *Validator) validateConfigFilePath(env string, path string) error {
	if path == "" {
		return fmt.Errorf("config file path cannot be empty")
	}
	if len(path) > 255 {
		return fmt.Errorf("config file path is too long")
	}
	if !fileExists(path) {
		return fmt.Errorf("config file does not exist: %s", path)
	}
	if err := v.validateEnv(env); err != nil {
		return fmt.Errorf("running environment is not valid: %w", err)
	}
	return nil
}

func (v *Validator) validateEnv(env string) error {
	switch env {
	case consts.ENV_DEVELOPMENT, consts.ENV_TEST, consts.ENV_PRODUCTION:
		return nil
	case "":
		return errors.New("empty")
	}
	return fmt.Errorf("unknown env %q", env)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
