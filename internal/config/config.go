package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"emgreach/domain/task"
	"emgreach/internal/errors"
)

// Supported acquisition devices
const (
	DeviceTrigno    = "trigno"
	DeviceSerial    = "serial"
	DeviceSimulated = "simulated"
)

// Supported export formats
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// Config represents the complete application configuration
type Config struct {
	Device      DeviceConfig
	Task        TaskConfig
	Calibration CalibrationConfig
	Export      ExportConfig
	Database    DatabaseConfig
	Viewer      ViewerConfig
	LogLevel    string
}

// DeviceConfig selects and parameterizes the acquisition collaborator
type DeviceConfig struct {
	Kind           string
	TrignoHost     string
	CommandPort    int
	DataPort       int
	Channels       int
	SamplesPerRead int
	ReadTimeout    time.Duration
	SerialDevice   string
	SerialBaud     int
	SimulatedSeed  int64
}

// TaskConfig holds canvas geometry and trial pacing
type TaskConfig struct {
	CanvasWidth  float64
	CanvasHeight float64
	CursorRadius float64
	Repetitions  int
	Cooldown     time.Duration
	TickInterval time.Duration
	Seed         int64
}

// CalibrationConfig holds phase durations
type CalibrationConfig struct {
	RestDuration time.Duration
	MVCSettle    time.Duration
	MVCDuration  time.Duration
	Attempts     int
}

// ExportConfig controls where the session log is written on Finished
type ExportConfig struct {
	OutputDir string
	Formats   []string
	Open      bool
}

// DatabaseConfig holds the optional session store connection
type DatabaseConfig struct {
	Driver string
	URL    string
}

// ViewerConfig holds the live viewer server settings
type ViewerConfig struct {
	Enabled bool
	Addr    string
	// CursorInterval throttles cursor events; zero streams every move.
	CursorInterval time.Duration
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Device:      loadDeviceConfig(),
		Task:        loadTaskConfig(),
		Calibration: loadCalibrationConfig(),
		Export:      loadExportConfig(),
		Database:    loadDatabaseConfig(),
		Viewer:      loadViewerConfig(),
		LogLevel:    getEnvOrDefault("LOG_LEVEL", "INFO"),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

// Default returns the configuration produced by an empty environment.
func Default() *Config {
	return &Config{
		Device:      defaultDeviceConfig(),
		Task:        defaultTaskConfig(),
		Calibration: defaultCalibrationConfig(),
		Export:      defaultExportConfig(),
		Database:    DatabaseConfig{Driver: "sqlite3", URL: "emgreach.db"},
		Viewer:      ViewerConfig{Enabled: true, Addr: ":8080", CursorInterval: 15 * time.Millisecond},
		LogLevel:    "INFO",
	}
}

func defaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		Kind:           DeviceSimulated,
		TrignoHost:     "localhost",
		CommandPort:    50040,
		DataPort:       50043,
		Channels:       16,
		SamplesPerRead: 850,
		ReadTimeout:    5 * time.Millisecond,
		SerialDevice:   "/dev/ttyACM0",
		SerialBaud:     115200,
		SimulatedSeed:  1,
	}
}

func defaultTaskConfig() TaskConfig {
	return TaskConfig{
		CanvasWidth:  1920,
		CanvasHeight: 1000,
		CursorRadius: 10,
		Repetitions:  3,
		Cooldown:     3 * time.Second,
		TickInterval: time.Millisecond,
	}
}

func defaultCalibrationConfig() CalibrationConfig {
	return CalibrationConfig{
		RestDuration: 5 * time.Second,
		MVCSettle:    2 * time.Second,
		MVCDuration:  2 * time.Second,
		Attempts:     3,
	}
}

func defaultExportConfig() ExportConfig {
	return ExportConfig{
		OutputDir: ".",
		Formats:   []string{FormatCSV, FormatXLSX},
		Open:      true,
	}
}

func loadDeviceConfig() DeviceConfig {
	d := defaultDeviceConfig()
	return DeviceConfig{
		Kind:           strings.ToLower(getEnvOrDefault("EMG_DEVICE", d.Kind)),
		TrignoHost:     getEnvOrDefault("TRIGNO_HOST", d.TrignoHost),
		CommandPort:    getEnvIntOrDefault("TRIGNO_COMMAND_PORT", d.CommandPort),
		DataPort:       getEnvIntOrDefault("TRIGNO_DATA_PORT", d.DataPort),
		Channels:       getEnvIntOrDefault("TRIGNO_CHANNELS", d.Channels),
		SamplesPerRead: getEnvIntOrDefault("TRIGNO_SAMPLES_PER_READ", d.SamplesPerRead),
		ReadTimeout:    getEnvDurationOrDefault("DEVICE_READ_TIMEOUT", d.ReadTimeout),
		SerialDevice:   getEnvOrDefault("SERIAL_DEVICE", d.SerialDevice),
		SerialBaud:     getEnvIntOrDefault("SERIAL_BAUD", d.SerialBaud),
		SimulatedSeed:  int64(getEnvIntOrDefault("SIMULATED_SEED", int(d.SimulatedSeed))),
	}
}

func loadTaskConfig() TaskConfig {
	d := defaultTaskConfig()
	return TaskConfig{
		CanvasWidth:  getEnvFloatOrDefault("CANVAS_WIDTH", d.CanvasWidth),
		CanvasHeight: getEnvFloatOrDefault("CANVAS_HEIGHT", d.CanvasHeight),
		CursorRadius: getEnvFloatOrDefault("CURSOR_RADIUS", d.CursorRadius),
		Repetitions:  getEnvIntOrDefault("TARGET_REPETITIONS", d.Repetitions),
		Cooldown:     getEnvDurationOrDefault("COOLDOWN", d.Cooldown),
		TickInterval: getEnvDurationOrDefault("TICK_INTERVAL", d.TickInterval),
		Seed:         int64(getEnvIntOrDefault("TRIAL_SEED", 0)),
	}
}

func loadCalibrationConfig() CalibrationConfig {
	d := defaultCalibrationConfig()
	return CalibrationConfig{
		RestDuration: getEnvDurationOrDefault("REST_DURATION", d.RestDuration),
		MVCSettle:    getEnvDurationOrDefault("MVC_SETTLE", d.MVCSettle),
		MVCDuration:  getEnvDurationOrDefault("MVC_DURATION", d.MVCDuration),
		Attempts:     getEnvIntOrDefault("CALIBRATION_ATTEMPTS", d.Attempts),
	}
}

func loadExportConfig() ExportConfig {
	d := defaultExportConfig()
	formats := d.Formats
	if raw := os.Getenv("EXPORT_FORMATS"); raw != "" {
		formats = splitList(raw)
	}
	return ExportConfig{
		OutputDir: getEnvOrDefault("OUTPUT_DIR", d.OutputDir),
		Formats:   formats,
		Open:      getEnvBoolOrDefault("OPEN_EXPORT", d.Open),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	url, set := os.LookupEnv("DATABASE_URL")
	if !set {
		url = "emgreach.db"
	}
	return DatabaseConfig{
		Driver: getEnvOrDefault("DATABASE_DRIVER", "sqlite3"),
		URL:    url,
	}
}

func loadViewerConfig() ViewerConfig {
	return ViewerConfig{
		Enabled:        getEnvBoolOrDefault("VIEWER_ENABLED", true),
		Addr:           getEnvOrDefault("VIEWER_ADDR", ":8080"),
		CursorInterval: getEnvDurationOrDefault("VIEWER_CURSOR_INTERVAL", 15*time.Millisecond),
	}
}

// Validate re-checks a configuration after flag overrides.
func (c *Config) Validate() error {
	return validateConfig(c)
}

func validateConfig(config *Config) error {
	switch config.Device.Kind {
	case DeviceTrigno, DeviceSerial, DeviceSimulated:
	default:
		return errors.ConfigInvalid("EMG_DEVICE must be one of trigno, serial, simulated")
	}
	if config.Device.Kind == DeviceTrigno && config.Device.Channels < 5 {
		return errors.ConfigInvalid("TRIGNO_CHANNELS must be at least 5")
	}
	if config.Task.CanvasWidth <= 0 || config.Task.CanvasHeight <= 0 {
		return errors.ConfigInvalid("canvas dimensions must be positive")
	}
	if config.Task.CursorRadius <= 0 {
		return errors.ConfigInvalid("CURSOR_RADIUS must be positive")
	}
	if least := task.MinCanvas(config.Task.CursorRadius); config.Task.CanvasWidth < least.Width || config.Task.CanvasHeight < least.Height {
		return errors.ConfigInvalid(fmt.Sprintf("canvas must be at least %.0fx%.0f to hold every target", least.Width, least.Height))
	}
	if config.Task.Repetitions < 1 {
		return errors.ConfigInvalid("TARGET_REPETITIONS must be at least 1")
	}
	if config.Calibration.RestDuration <= 0 || config.Calibration.MVCDuration <= 0 {
		return errors.ConfigInvalid("calibration durations must be positive")
	}
	if config.Viewer.CursorInterval < 0 {
		return errors.ConfigInvalid("VIEWER_CURSOR_INTERVAL must not be negative")
	}
	if config.Calibration.Attempts < 1 {
		return errors.ConfigInvalid("CALIBRATION_ATTEMPTS must be at least 1")
	}
	for _, f := range config.Export.Formats {
		if f != FormatCSV && f != FormatXLSX {
			return errors.ConfigInvalid("unsupported export format: " + f)
		}
	}
	if config.Database.URL != "" && config.Database.Driver != "sqlite3" && config.Database.Driver != "postgres" {
		return errors.ConfigInvalid("DATABASE_DRIVER must be sqlite3 or postgres")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
