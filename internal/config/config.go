package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const ConfigFileName = "eldersvr.yaml"

// DefaultDevicePath is the primary content directory probed on every device.
const DefaultDevicePath = "/storage/emulated/0/Download/EldersVR"

type Config struct {
	ProjectName string   `yaml:"project_name"`
	Backend     Backend  `yaml:"backend"`
	Auth        Auth     `yaml:"auth"`
	Paths       Paths    `yaml:"paths"`
	Devices     Devices  `yaml:"devices"`
	Download    Download `yaml:"download"`
	ADB         ADB      `yaml:"adb"`
	ResetLedger bool     `yaml:"reset_ledger"`
}

type Backend struct {
	APIURL        string `yaml:"api_url"`
	AuthEndpoint  string `yaml:"auth_endpoint"`
	TagsEndpoint  string `yaml:"tags_endpoint"`
	FilmsEndpoint string `yaml:"films_endpoint"`
}

type Auth struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

type Paths struct {
	LocalDownloads string `yaml:"local_downloads"`
	DevicePath     string `yaml:"device_path"`
	JSONFilename   string `yaml:"json_filename"`
}

type Devices struct {
	MasterSerial string `yaml:"master_serial"`
	SlaveSerial  string `yaml:"slave_serial"`
}

type Download struct {
	Quality           string `yaml:"quality"`
	MaxConcurrency    int    `yaml:"max_concurrency"`
	RetryAttempts     int    `yaml:"retry_attempts"`
	RetryDelaySeconds int    `yaml:"retry_delay_seconds"`
}

type ADB struct {
	Binary     string `yaml:"binary"`
	AppPackage string `yaml:"app_package"`
	APKPath    string `yaml:"apk_path"`
}

// VideosDir returns the local directory video assets are downloaded into.
func (p Paths) VideosDir() string {
	return filepath.Join(p.LocalDownloads, "videos")
}

// ImagesDir returns the local directory thumbnails and tag images are
// downloaded into.
func (p Paths) ImagesDir() string {
	return filepath.Join(p.LocalDownloads, "images")
}

// ManifestPath returns the local path of the generated deployment manifest.
func (p Paths) ManifestPath() string {
	name := p.JSONFilename
	if name == "" {
		name = "new_data.json"
	}
	return filepath.Join(p.LocalDownloads, name)
}

// CredentialPath returns the local path of the credential file pushed to the
// master device only.
func (p Paths) CredentialPath() string {
	return filepath.Join(p.LocalDownloads, "credential.json")
}

// DefaultConfig returns the config written by `eldersvr init` when no
// template.yaml overrides it.
func DefaultConfig() Config {
	return Config{
		ProjectName: "eldersvr-deploy",
		Backend: Backend{
			APIURL:        "https://api.eldersvr.example.com",
			AuthEndpoint:  "/integration/auth/login",
			TagsEndpoint:  "/integration/tags",
			FilmsEndpoint: "/integration/films",
		},
		Auth: Auth{
			Email:    "${ELDERSVR_EMAIL}",
			Password: "${ELDERSVR_PASSWORD}",
		},
		Paths: Paths{
			LocalDownloads: "./downloads",
			DevicePath:     DefaultDevicePath,
			JSONFilename:   "new_data.json",
		},
		Download: Download{
			Quality:           "both",
			MaxConcurrency:    4,
			RetryAttempts:     3,
			RetryDelaySeconds: 2,
		},
		ADB: ADB{
			Binary:     "adb",
			AppPackage: "com.q42.eldersvr",
		},
	}
}

// ValidateConfig validates the configuration for required fields and value
// ranges, collecting every problem instead of stopping at the first.
func ValidateConfig(cfg *Config) error {
	var validationErrors []string

	if strings.TrimSpace(cfg.ProjectName) == "" {
		validationErrors = append(validationErrors, "project_name cannot be empty")
	}

	if strings.TrimSpace(cfg.Backend.APIURL) == "" {
		validationErrors = append(validationErrors, "backend.api_url cannot be empty")
	} else if u, err := url.Parse(cfg.Backend.APIURL); err != nil || u.Scheme == "" || u.Host == "" {
		validationErrors = append(validationErrors, fmt.Sprintf("backend.api_url is not a valid URL: %s", cfg.Backend.APIURL))
	}

	for _, ep := range []struct{ name, value string }{
		{"backend.auth_endpoint", cfg.Backend.AuthEndpoint},
		{"backend.tags_endpoint", cfg.Backend.TagsEndpoint},
		{"backend.films_endpoint", cfg.Backend.FilmsEndpoint},
	} {
		if strings.TrimSpace(ep.value) == "" {
			validationErrors = append(validationErrors, fmt.Sprintf("%s cannot be empty", ep.name))
		} else if !strings.HasPrefix(ep.value, "/") {
			validationErrors = append(validationErrors, fmt.Sprintf("%s must start with '/': %s", ep.name, ep.value))
		}
	}

	if strings.TrimSpace(cfg.Paths.LocalDownloads) == "" {
		validationErrors = append(validationErrors, "paths.local_downloads cannot be empty")
	} else if err := os.MkdirAll(cfg.Paths.LocalDownloads, 0755); err != nil {
		validationErrors = append(validationErrors, fmt.Sprintf("cannot create downloads directory: %s", cfg.Paths.LocalDownloads))
	}

	if strings.TrimSpace(cfg.Paths.DevicePath) == "" {
		validationErrors = append(validationErrors, "paths.device_path cannot be empty")
	} else if !strings.HasPrefix(cfg.Paths.DevicePath, "/") {
		validationErrors = append(validationErrors, fmt.Sprintf("paths.device_path must be absolute: %s", cfg.Paths.DevicePath))
	}

	switch cfg.Download.Quality {
	case "high", "low", "both":
	default:
		validationErrors = append(validationErrors, fmt.Sprintf("download.quality must be one of high, low, both: %s", cfg.Download.Quality))
	}

	if cfg.Download.MaxConcurrency < 1 {
		validationErrors = append(validationErrors, "download.max_concurrency must be at least 1")
	}

	if cfg.Download.RetryAttempts < 0 {
		validationErrors = append(validationErrors, "download.retry_attempts cannot be negative")
	}

	if cfg.Download.RetryDelaySeconds < 0 {
		validationErrors = append(validationErrors, "download.retry_delay_seconds cannot be negative")
	}

	if strings.TrimSpace(cfg.ADB.Binary) == "" {
		validationErrors = append(validationErrors, "adb.binary cannot be empty")
	}

	if strings.TrimSpace(cfg.ADB.AppPackage) == "" {
		validationErrors = append(validationErrors, "adb.app_package cannot be empty")
	}

	// APK path is optional, but when set it must exist
	if strings.TrimSpace(cfg.ADB.APKPath) != "" {
		if _, err := os.Stat(cfg.ADB.APKPath); os.IsNotExist(err) {
			validationErrors = append(validationErrors, fmt.Sprintf("adb.apk_path does not exist: %s", cfg.ADB.APKPath))
		}
	}

	if len(validationErrors) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(validationErrors, "\n"))
	}

	return nil
}

// interpolateEnv expands ${VAR} references in the raw config text. Values come
// from the OS environment first; a .env file in the working directory fills in
// anything the environment doesn't define.
func interpolateEnv(text string) string {
	dotenv := map[string]string{}
	if m, err := godotenv.Read(".env"); err == nil {
		dotenv = m
	}
	return os.Expand(text, func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return dotenv[key]
	})
}

// LoadAndValidateConfig loads eldersvr.yaml from the working directory,
// resolves ${VAR} references, applies defaults, and validates the result.
func LoadAndValidateConfig() (*Config, error) {
	if !ConfigExists() {
		return nil, errors.New("eldersvr.yaml not found. Please run 'eldersvr init' first")
	}

	data, err := os.ReadFile(ConfigFileName)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	rendered := interpolateEnv(string(data))

	var cfg Config
	err = yaml.Unmarshal([]byte(rendered), &cfg)
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	applyDefaults(&cfg)

	err = ValidateConfig(&cfg)
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyDefaults fills optional fields so older configs keep working.
func applyDefaults(cfg *Config) {
	if cfg.Paths.JSONFilename == "" {
		cfg.Paths.JSONFilename = "new_data.json"
	}
	if cfg.Paths.DevicePath == "" {
		cfg.Paths.DevicePath = DefaultDevicePath
	}
	if cfg.Download.Quality == "" {
		cfg.Download.Quality = "both"
	}
	if cfg.Download.MaxConcurrency == 0 {
		cfg.Download.MaxConcurrency = 4
	}
	if cfg.Download.RetryAttempts == 0 {
		cfg.Download.RetryAttempts = 3
	}
	if cfg.Download.RetryDelaySeconds == 0 {
		cfg.Download.RetryDelaySeconds = 2
	}
	if cfg.ADB.Binary == "" {
		cfg.ADB.Binary = "adb"
	}
	if cfg.ADB.AppPackage == "" {
		cfg.ADB.AppPackage = "com.q42.eldersvr"
	}
}

// SaveConfig writes cfg back to eldersvr.yaml in the working directory.
// Used by select-devices to persist chosen serials.
func SaveConfig(cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error generating config: %v", err)
	}
	if err := os.WriteFile(ConfigFileName, data, 0644); err != nil {
		return fmt.Errorf("error writing %s: %v", ConfigFileName, err)
	}
	return nil
}

func ConfigExists() bool {
	_, err := os.Stat(ConfigFileName)
	return !os.IsNotExist(err)
}

func GetConfigPath() string {
	cwd, _ := os.Getwd()
	return filepath.Join(cwd, ConfigFileName)
}
