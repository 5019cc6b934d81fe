package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"go-passport-reader/backend"
	"go-passport-reader/diagnostics"
	log "go-passport-reader/logging"
	"go-passport-reader/nfc"
	"go-passport-reader/pcsc"
	redis "go-passport-reader/redis"
)

type Config struct {
	ServerConfig ServerConfig `json:"server_config"`

	LogLevel      string        `json:"log_level,omitempty"`
	Language      string        `json:"language,omitempty"`
	ReaderConfig  ReaderConfig  `json:"reader_config"`
	BackendConfig BackendConfig `json:"backend_config,omitempty"`

	StorageType         string                    `json:"storage_type"`
	RedisConfig         redis.RedisConfig         `json:"redis_config,omitempty"`
	RedisSentinelConfig redis.RedisSentinelConfig `json:"redis_sentinel_config,omitempty"`
}

type ReaderConfig struct {
	// PC/SC reader name; empty picks the first reader holding a card
	Reader         string `json:"reader,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
	DisablePACE    bool   `json:"disable_pace,omitempty"`
}

type BackendConfig struct {
	BaseURL               string `json:"base_url"`
	SigningKeyPath        string `json:"signing_key_path,omitempty"`
	SigningIssuer         string `json:"signing_issuer,omitempty"`
	Platform              string `json:"platform,omitempty"`
	AppVersion            string `json:"app_version,omitempty"`
	DeviceInfo            string `json:"device_info,omitempty"`
	ReportIntervalSeconds int    `json:"report_interval_seconds,omitempty"`
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

// run dispatches the serve (default) and read subcommands.
func run(args []string, stdout io.Writer) error {
	command := "serve"
	if len(args) > 0 && (args[0] == "serve" || args[0] == "read") {
		command, args = args[0], args[1:]
	}
	switch command {
	case "read":
		return runRead(args, stdout)
	default:
		return runServe(args)
	}
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path for the config.json to use")
	if err := fs.Parse(args); err != nil {
		return err
	}
	config, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	storage, err := createReportStorage(&config)
	if err != nil {
		return fmt.Errorf("failed to instantiate report storage: %w", err)
	}
	submitter, err := createBackendClient(&config.BackendConfig)
	if err != nil {
		return fmt.Errorf("failed to instantiate backend client: %w", err)
	}

	lang := nfc.ParseLanguage(config.Language)
	serverState := ServerState{
		readService: NewReadService(createEngine(&config.ReaderConfig), storage, submitter, lang),
		storage:     storage,
		language:    lang,
	}

	slog.Info("hosting", "host", config.ServerConfig.Host, "port", config.ServerConfig.Port)
	server, err := NewServer(&serverState, config.ServerConfig)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	if err := server.ListenAndServe(); err != nil {
		return fmt.Errorf("failed to listen and serve: %w", err)
	}
	return nil
}

// runRead performs a single read and prints the diagnostic report.
func runRead(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("read", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path for the config.json to use")
	doc := fs.String("doc", "", "Document number")
	dob := fs.String("dob", "", "Date of birth, YYMMDD")
	exp := fs.String("exp", "", "Date of expiry, YYMMDD")
	submit := fs.Bool("submit", false, "Submit a successful read to the backend")
	asJSON := fs.Bool("json", false, "Print the report as JSON instead of text")
	if err := fs.Parse(args); err != nil {
		return err
	}
	config, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	var submitter OutcomeSubmitter
	if *submit {
		if submitter, err = createBackendClient(&config.BackendConfig); err != nil {
			return fmt.Errorf("failed to instantiate backend client: %w", err)
		}
	}

	lang := nfc.ParseLanguage(config.Language)
	service := NewReadService(createEngine(&config.ReaderConfig), NewInMemoryReportStorage(), submitter, lang)
	keys := nfc.AccessKeys{DocumentNumber: *doc, DateOfBirth: *dob, DateOfExpiry: *exp}

	response, report, err := service.Read(context.Background(), keys, *submit)
	if err != nil {
		return err
	}
	if err := printReport(stdout, report, *asJSON, config.Language); err != nil {
		return err
	}
	if response.SubmitError != "" {
		return fmt.Errorf("read succeeded but submit failed: %s", response.SubmitError)
	}
	if response.Status != nfc.StatusSuccess.String() {
		return fmt.Errorf("read failed: %s", response.Message)
	}
	return nil
}

func printReport(w io.Writer, report *diagnostics.Report, asJSON bool, language string) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	_, err := io.WriteString(w, diagnostics.RenderText(report, nfc.ParseLanguage(language)))
	return err
}

func loadConfig(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("please provide a config path using the --config flag")
	}
	config, err := readConfigFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	log.InitLogger(config.LogLevel)
	slog.Info("using config", "path", path)
	return config, nil
}

func readConfigFile(path string) (Config, error) {
	configBytes, err := os.ReadFile(path)

	if err != nil {
		return Config{}, err
	}

	var config Config
	err = json.Unmarshal(configBytes, &config)

	if err != nil {
		return Config{}, err
	}

	return config, nil
}

func createEngine(config *ReaderConfig) *nfc.Engine {
	opts := []nfc.Option{
		nfc.WithPACE(!config.DisablePACE),
		nfc.WithLogger(log.GetLogger()),
	}
	if config.TimeoutSeconds > 0 {
		opts = append(opts, nfc.WithTimeout(time.Duration(config.TimeoutSeconds)*time.Second))
	}
	return nfc.NewEngine(pcsc.New(config.Reader), nfc.PlainAuthenticator{}, opts...)
}

// createBackendClient returns a nil submitter when no backend is configured.
func createBackendClient(config *BackendConfig) (OutcomeSubmitter, error) {
	if config.BaseURL == "" {
		slog.Info("No backend configured, reads are not submitted")
		return nil, nil
	}

	var opts []backend.ClientOption
	if config.SigningKeyPath != "" {
		signer, err := NewJwtPayloadSigner(config.SigningKeyPath, config.SigningIssuer)
		if err != nil {
			return nil, err
		}
		opts = append(opts, backend.WithSigner(signer))
	}

	client := backend.NewClient(config.BaseURL, opts...)
	reporterOpts := []backend.ReporterOption{
		backend.WithPlatform(config.Platform),
		backend.WithAppVersion(config.AppVersion),
		backend.WithDeviceInfo(config.DeviceInfo),
	}
	if config.ReportIntervalSeconds > 0 {
		reporterOpts = append(reporterOpts, backend.WithInterval(time.Duration(config.ReportIntervalSeconds)*time.Second))
	}
	client.SetErrorReporter(backend.NewErrorReporter(client, reporterOpts...))

	if err := client.HealthCheck(context.Background()); err != nil {
		slog.Warn("Backend health check failed", "error", err)
	}
	return client, nil
}

func createReportStorage(config *Config) (ReportStorage, error) {
	if config.StorageType == "redis" {
		slog.Info("Using redis report storage")
		client, err := redis.NewRedisClient(&config.RedisConfig)
		if err != nil {
			return nil, err
		}
		return NewRedisReportStorage(client, config.RedisConfig.Namespace), nil
	}
	if config.StorageType == "redis_sentinel" {
		slog.Info("Using redis sentinel report storage")
		client, err := redis.NewRedisSentinelClient(&config.RedisSentinelConfig)
		if err != nil {
			return nil, err
		}
		return NewRedisReportStorage(client, config.RedisSentinelConfig.Namespace), nil
	}
	if config.StorageType == "memory" || config.StorageType == "" {
		slog.Info("Using in memory report storage")
		return NewInMemoryReportStorage(), nil
	}
	return nil, fmt.Errorf("%v is not a valid storage type", config.StorageType)
}
