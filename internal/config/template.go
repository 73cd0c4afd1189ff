package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"eldersvr-cli/internal/util"
)

// LoadTemplateConfig returns the starting config for `eldersvr init`. A
// template.yaml next to the executable takes precedence so teams can ship a
// pre-filled backend block; otherwise the built-in defaults are used.
func LoadTemplateConfig() (Config, string, error) {
	exeDir, err := util.ExecutableDir()
	if err != nil {
		return DefaultConfig(), "builtin", nil
	}

	templatePath := filepath.Join(exeDir, "template.yaml")
	data, err := os.ReadFile(templatePath)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), "builtin", nil
		}
		return Config{}, "", fmt.Errorf("error reading template.yaml: %v", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, "", fmt.Errorf("error parsing template.yaml: %v", err)
	}
	return cfg, templatePath, nil
}

// WriteInitialConfig writes eldersvr.yaml into the working directory from the
// template (or defaults). Fails if a config already exists so init never
// clobbers a configured workspace.
func WriteInitialConfig() (string, error) {
	if ConfigExists() {
		return "", fmt.Errorf("%s already exists in this directory", ConfigFileName)
	}

	cfg, source, err := LoadTemplateConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("error generating config: %v", err)
	}

	header := "# EldersVR deployment workspace configuration.\n" +
		"# ${VAR} references are resolved from the environment, then from .env.\n"
	if err := os.WriteFile(ConfigFileName, []byte(header+string(data)), 0644); err != nil {
		return "", fmt.Errorf("error writing %s: %v", ConfigFileName, err)
	}

	return source, nil
}
