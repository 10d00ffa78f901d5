package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MaxConfigFileBytes bounds the size of a configuration file.
const MaxConfigFileBytes = 64 * 1024

// ValidateConfigPath accepts only .yaml files located directly in a
// configs/ directory, with no traversal in the given path.
func ValidateConfigPath(path string) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("config path %q must not contain '..'", path)
		}
	}
	clean := filepath.Clean(path)
	if filepath.Ext(clean) != ".yaml" {
		return fmt.Errorf("config path %q must have a .yaml extension", path)
	}
	if filepath.Base(filepath.Dir(clean)) != "configs" {
		return fmt.Errorf("config path %q must be inside a configs/ directory", path)
	}
	return nil
}

// WheelConfig holds the H-bridge pins of one drive wheel.
type WheelConfig struct {
	PWMPin      int     `yaml:"pwm_pin"`
	ForwardPin  int     `yaml:"forward_pin"`
	BackwardPin int     `yaml:"backward_pin"`
	MaxDPS      float64 `yaml:"max_dps"`     // wheel speed at full duty
	PWMFreqHz   int     `yaml:"pwm_freq_hz"` // default 1000
}

// UltrasonicConfig holds the pins of an HC-SR04 ranger.
type UltrasonicConfig struct {
	TriggerPin int     `yaml:"trigger_pin"`
	EchoPin    int     `yaml:"echo_pin"`
	TimeoutMs  int     `yaml:"timeout_ms"`
	MaxRangeCM float64 `yaml:"max_range_cm"`
}

// SensorHubConfig describes the serial link to the magnetometer/IR board.
type SensorHubConfig struct {
	Port          string `yaml:"port"` // e.g. /dev/ttyUSB0
	BaudRate      int    `yaml:"baud_rate"`
	ReadTimeoutMs int    `yaml:"read_timeout_ms"`
}

// CarouselConfig holds the label carousel stepper.
type CarouselConfig struct {
	StepPin         int     `yaml:"step_pin"`
	DirPin          int     `yaml:"dir_pin"`
	EnablePin       int     `yaml:"enable_pin"` // A4988 ENABLE pin (BCM). 0 = not used. Active LOW.
	StepsPerRev     int     `yaml:"steps_per_rev"`
	Microstepping   int     `yaml:"microstepping"`
	StepDelayUs     int     `yaml:"step_delay_us"`
	DegreesPerLabel float64 `yaml:"degrees_per_label"`
}

// NavigationConfig holds the wall follower thresholds and timings.
type NavigationConfig struct {
	SpeedDPS          float64 `yaml:"speed_dps"`
	TurnSpeedDPS      float64 `yaml:"turn_speed_dps"`
	QuarterTurnMs     int     `yaml:"quarter_turn_ms"`
	TickMs            int     `yaml:"tick_ms"`
	NearWallCM        float64 `yaml:"near_wall_cm"`
	FrontClearanceCM  float64 `yaml:"front_clearance_cm"`
	MagneticThreshold float64 `yaml:"magnetic_threshold"` // µT
	IRThreshold       float64 `yaml:"ir_threshold"`
	OpenCornerDriveMs int     `yaml:"open_corner_drive_ms"`
	OpenCornerTurnMs  int     `yaml:"open_corner_turn_ms"`
	SettleMs          int     `yaml:"settle_ms"`
	TickIncrement     float64 `yaml:"tick_increment"`   // leg units per wall-following tick
	CornerIncrement   float64 `yaml:"corner_increment"` // leg units per corner
	SettleIncrement   float64 `yaml:"settle_increment"` // leg units per settle run
}

// PIDConfig holds the wall follower gains. An all-zero block selects the
// tuned defaults.
type PIDConfig struct {
	KP       float64 `yaml:"kp"`
	KD       float64 `yaml:"kd"`
	KI       float64 `yaml:"ki"`
	TargetCM float64 `yaml:"target_cm"`
	StableCM float64 `yaml:"stable_cm"`
	FarError float64 `yaml:"far_error"`
}

// MappingConfig controls the map exports.
type MappingConfig struct {
	Team       string  `yaml:"team"`
	UnitLength float64 `yaml:"unit_length"`
	Unit       string  `yaml:"unit"`
	Notes      string  `yaml:"notes"`
	OutputDir  string  `yaml:"output_dir"`
	Plot       bool    `yaml:"plot"` // also write a PNG of the map
}

// ArchiveConfig locates the run archive. An empty path disables it.
type ArchiveConfig struct {
	Path string `yaml:"path"`
}

// DefaultsConfig contains the per-run parameters and runtime switches.
type DefaultsConfig struct {
	MapNumber  int  `yaml:"map_number"`
	Cargo      int  `yaml:"cargo"`       // label shown before the run, -1 = none
	DebugLevel int  `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO   bool `yaml:"mock_gpio"`   // use mock hardware (true=dev/test, false=real Raspberry Pi)
}

// Config aggregates all application configuration.
type Config struct {
	RightWheel  WheelConfig      `yaml:"right_wheel"`
	LeftWheel   WheelConfig      `yaml:"left_wheel"`
	FrontSensor UltrasonicConfig `yaml:"front_sensor"`
	RightSensor UltrasonicConfig `yaml:"right_sensor"`
	SensorHub   SensorHubConfig  `yaml:"sensor_hub"`
	Carousel    CarouselConfig   `yaml:"carousel"`
	Navigation  NavigationConfig `yaml:"navigation"`
	PID         PIDConfig        `yaml:"pid"`
	Mapping     MappingConfig    `yaml:"mapping"`
	Archive     ArchiveConfig    `yaml:"archive"`
	Defaults    DefaultsConfig   `yaml:"defaults"`
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxConfigFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if len(data) > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file exceeds %d bytes", MaxConfigFileBytes)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	// Basic validation
	if cfg.Mapping.Team == "" {
		return nil, fmt.Errorf("mapping.team is required")
	}
	if cfg.Mapping.UnitLength < 0 {
		return nil, fmt.Errorf("mapping.unit_length must be >= 0 (0 = default 5), got %.2f", cfg.Mapping.UnitLength)
	}
	if cfg.Defaults.MapNumber < 0 {
		return nil, fmt.Errorf("defaults.map_number must be >= 0, got %d", cfg.Defaults.MapNumber)
	}
	if cfg.Defaults.Cargo < -1 || cfg.Defaults.Cargo > 3 {
		return nil, fmt.Errorf("defaults.cargo must be between -1 and 3, got %d", cfg.Defaults.Cargo)
	}
	if cfg.Defaults.DebugLevel < 0 || cfg.Defaults.DebugLevel > 4 {
		return nil, fmt.Errorf("defaults.debug_level must be between 0 and 4, got %d", cfg.Defaults.DebugLevel)
	}
	if !cfg.Defaults.MockGPIO && cfg.SensorHub.Port == "" {
		return nil, fmt.Errorf("sensor_hub.port is required on real hardware")
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	m := &cfg.Mapping
	if m.UnitLength == 0 {
		m.UnitLength = 5
	}
	if m.Unit == "" {
		m.Unit = "cm"
	}
	if m.OutputDir == "" {
		m.OutputDir = "."
	}

	for _, w := range []*WheelConfig{&cfg.RightWheel, &cfg.LeftWheel} {
		if w.MaxDPS <= 0 {
			w.MaxDPS = 360
		}
		if w.PWMFreqHz <= 0 {
			w.PWMFreqHz = 1000
		}
	}

	for _, u := range []*UltrasonicConfig{&cfg.FrontSensor, &cfg.RightSensor} {
		if u.TimeoutMs <= 0 {
			u.TimeoutMs = 40
		}
		if u.MaxRangeCM <= 0 {
			u.MaxRangeCM = 400
		}
	}

	if cfg.SensorHub.BaudRate <= 0 {
		cfg.SensorHub.BaudRate = 115200
	}
	if cfg.SensorHub.ReadTimeoutMs <= 0 {
		cfg.SensorHub.ReadTimeoutMs = 200
	}

	c := &cfg.Carousel
	if c.StepsPerRev <= 0 {
		c.StepsPerRev = 200
	}
	if c.Microstepping <= 0 {
		c.Microstepping = 1
	}
	if c.StepDelayUs <= 0 {
		c.StepDelayUs = 1000
	}
	if c.DegreesPerLabel <= 0 {
		c.DegreesPerLabel = 90
	}

	n := &cfg.Navigation
	setFloat(&n.SpeedDPS, 180)
	setFloat(&n.TurnSpeedDPS, 180)
	setInt(&n.QuarterTurnMs, 1397)
	setInt(&n.TickMs, 100)
	setFloat(&n.NearWallCM, 20)
	setFloat(&n.FrontClearanceCM, 15)
	setFloat(&n.MagneticThreshold, 100)
	setFloat(&n.IRThreshold, 9)
	setInt(&n.OpenCornerDriveMs, 1400)
	setInt(&n.OpenCornerTurnMs, 1200)
	setInt(&n.SettleMs, 500)
	setFloat(&n.TickIncrement, 0.25641)
	setFloat(&n.CornerIncrement, 4.10256)
	setFloat(&n.SettleIncrement, 1.28205)

	if cfg.PID == (PIDConfig{}) {
		cfg.PID = PIDConfig{KP: 3, KD: 2, KI: 1.5, TargetCM: 6, StableCM: 11, FarError: -6}
	}
}

func setFloat(v *float64, def float64) {
	if *v <= 0 {
		*v = def
	}
}

func setInt(v *int, def int) {
	if *v <= 0 {
		*v = def
	}
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

// QuarterTurn returns the duration of a 90° turn in place.
func (c *Config) QuarterTurn() time.Duration {
	return ms(c.Navigation.QuarterTurnMs)
}

// Tick returns the control loop period.
func (c *Config) Tick() time.Duration {
	return ms(c.Navigation.TickMs)
}

// OpenCornerDrive returns how long the robot drives past an open corner
// before turning.
func (c *Config) OpenCornerDrive() time.Duration {
	return ms(c.Navigation.OpenCornerDriveMs)
}

// OpenCornerTurn returns the duration of the turn into an open corner.
func (c *Config) OpenCornerTurn() time.Duration {
	return ms(c.Navigation.OpenCornerTurnMs)
}

// Settle returns the straight run after every corner.
func (c *Config) Settle() time.Duration {
	return ms(c.Navigation.SettleMs)
}

// EchoTimeout returns the ultrasonic echo timeout.
func (u UltrasonicConfig) EchoTimeout() time.Duration {
	return ms(u.TimeoutMs)
}

// ReadTimeout returns the serial read timeout of the sensor hub.
func (s SensorHubConfig) ReadTimeout() time.Duration {
	return ms(s.ReadTimeoutMs)
}

// StepDelay returns the carousel step half-period.
func (c CarouselConfig) StepDelay() time.Duration {
	return time.Duration(c.StepDelayUs) * time.Microsecond
}
