package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is read when VITALS_CONFIG_FILE is not set and the file exists.
const DefaultConfigFile = "config.yaml"

// FileConfig mirrors the optional YAML configuration file.
// Every field maps onto one environment variable; the environment always wins.
//
// Example config.yaml:
//
//	app:
//	  title: VitalLens 生命體徵檢測器
//	  port: 8894
//	vitallens:
//	  default_method: POS (免費)
//	uploads:
//	  max_file_size_mb: 100
type FileConfig struct {
	App struct {
		Title       string   `yaml:"title"`
		Host        string   `yaml:"host"`
		Port        int      `yaml:"port"`
		Environment string   `yaml:"environment"`
		CORSOrigins []string `yaml:"cors_allow_origins"`
		DataDir     string   `yaml:"data_dir"`
		Password    string   `yaml:"webui_password"`
	} `yaml:"app"`

	VitalLens struct {
		APIKey         string `yaml:"api_key"`
		DefaultMethod  string `yaml:"default_method"`
		Command        string `yaml:"detector_command"`
		TimeoutSeconds int    `yaml:"detector_timeout_seconds"`
	} `yaml:"vitallens"`

	Uploads struct {
		MaxFileSizeMB          int `yaml:"max_file_size_mb"`
		MaxVideoDurationSecond int `yaml:"max_video_duration_seconds"`
		RatePerMinute          int `yaml:"rate_per_minute"`
	} `yaml:"uploads"`

	Camera struct {
		FFmpegPath     string `yaml:"ffmpeg_path"`
		InputFormat    string `yaml:"input_format"`
		DeviceTemplate string `yaml:"device_template"`
		ProbeCount     int    `yaml:"probe_count"`
		FPS            int    `yaml:"fps"`
		Width          int    `yaml:"width"`
		Height         int    `yaml:"height"`
	} `yaml:"camera"`

	History struct {
		RetentionDays int `yaml:"retention_days"`
	} `yaml:"history"`

	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
}

// LoadConfigFile parses the YAML file at path.
// A missing file is not an error when optional is true; it yields an empty FileConfig.
func LoadConfigFile(path string, optional bool) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return &FileConfig{}, nil
		}
		return nil, ErrConfigFileUnreadable(path, err.Error())
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, ErrConfigFileUnreadable(path, fmt.Sprintf("invalid YAML: %v", err))
	}
	return &fc, nil
}

// Values flattens the file into environment-variable keyed strings so it can
// be layered underneath the real environment.
func (fc *FileConfig) Values() map[string]string {
	values := map[string]string{
		"APP_TITLE":                  fc.App.Title,
		"APP_HOST":                   fc.App.Host,
		"ENVIRONMENT":                fc.App.Environment,
		"DATA_DIR":                   fc.App.DataDir,
		"WEBUI_PASSWORD":             fc.App.Password,
		"VITALLENS_API_KEY":          fc.VitalLens.APIKey,
		"DEFAULT_METHOD":             fc.VitalLens.DefaultMethod,
		"DETECTOR_COMMAND":           fc.VitalLens.Command,
		"FFMPEG_PATH":                fc.Camera.FFmpegPath,
		"CAMERA_INPUT_FORMAT":        fc.Camera.InputFormat,
		"CAMERA_DEVICE_TEMPLATE":     fc.Camera.DeviceTemplate,
		"LOG_LEVEL":                  fc.Logging.Level,
		"LOG_FILE":                   fc.Logging.File,
		"CORS_ALLOW_ORIGINS":         strings.Join(fc.App.CORSOrigins, ","),
		"APP_PORT":                   intValue(fc.App.Port),
		"DETECTOR_TIMEOUT_SECONDS":   intValue(fc.VitalLens.TimeoutSeconds),
		"MAX_FILE_SIZE_MB":           intValue(fc.Uploads.MaxFileSizeMB),
		"MAX_VIDEO_DURATION_SECONDS": intValue(fc.Uploads.MaxVideoDurationSecond),
		"UPLOAD_RATE_PER_MINUTE":     intValue(fc.Uploads.RatePerMinute),
		"CAMERA_PROBE_COUNT":         intValue(fc.Camera.ProbeCount),
		"CAPTURE_FPS":                intValue(fc.Camera.FPS),
		"CAPTURE_WIDTH":              intValue(fc.Camera.Width),
		"CAPTURE_HEIGHT":             intValue(fc.Camera.Height),
		"HISTORY_RETENTION_DAYS":     intValue(fc.History.RetentionDays),
	}
	return values
}

// intValue renders zero as unset so the built-in default applies.
func intValue(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}
