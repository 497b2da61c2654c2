package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// CalibrationConfig holds per-axis calibration coefficients and the clip
// range for a device, loadable from JSON. Fields omitted from the file
// retain their defaults via the Get* accessors, so partial configs are
// safe. The schema matches the CLI calibration flags so the same values
// can come from either source.
type CalibrationConfig struct {
	XIntercept *float64 `json:"x_intercept,omitempty"`
	YIntercept *float64 `json:"y_intercept,omitempty"`
	ZIntercept *float64 `json:"z_intercept,omitempty"`
	XSlope     *float64 `json:"x_slope,omitempty"`
	YSlope     *float64 `json:"y_slope,omitempty"`
	ZSlope     *float64 `json:"z_slope,omitempty"`
	XTemp      *float64 `json:"x_temp,omitempty"`
	YTemp      *float64 `json:"y_temp,omitempty"`
	ZTemp      *float64 `json:"z_temp,omitempty"`
	MeanTemp   *float64 `json:"mean_temp,omitempty"`
	Range      *float64 `json:"range,omitempty"`
}

// EmptyCalibrationConfig returns a CalibrationConfig with all fields unset.
func EmptyCalibrationConfig() *CalibrationConfig {
	return &CalibrationConfig{}
}

// LoadCalibrationConfig loads a CalibrationConfig from a JSON file.
func LoadCalibrationConfig(path string) (*CalibrationConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyCalibrationConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are usable.
func (c *CalibrationConfig) Validate() error {
	if c.Range != nil && *c.Range <= 0 {
		return fmt.Errorf("range must be positive, got %f", *c.Range)
	}
	for axis, slope := range map[string]*float64{"x": c.XSlope, "y": c.YSlope, "z": c.ZSlope} {
		if slope != nil && *slope == 0 {
			return fmt.Errorf("%s_slope must be non-zero", axis)
		}
	}
	return nil
}

// GetIntercepts returns the per-axis intercepts or the identity default.
func (c *CalibrationConfig) GetIntercepts() [3]float64 {
	return [3]float64{deref(c.XIntercept, 0), deref(c.YIntercept, 0), deref(c.ZIntercept, 0)}
}

// GetSlopes returns the per-axis slopes or the identity default.
func (c *CalibrationConfig) GetSlopes() [3]float64 {
	return [3]float64{deref(c.XSlope, 1), deref(c.YSlope, 1), deref(c.ZSlope, 1)}
}

// GetTempCoefs returns the per-axis temperature coefficients or zero.
func (c *CalibrationConfig) GetTempCoefs() [3]float64 {
	return [3]float64{deref(c.XTemp, 0), deref(c.YTemp, 0), deref(c.ZTemp, 0)}
}

// GetMeanTemp returns the mean calibration temperature or zero.
func (c *CalibrationConfig) GetMeanTemp() float64 {
	return deref(c.MeanTemp, 0)
}

// GetRange returns the saturation limit in g, default 8.
func (c *CalibrationConfig) GetRange() float64 {
	return deref(c.Range, 8)
}

func deref(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
