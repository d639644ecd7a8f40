package config

import (
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config captures all runtime options for a split run.
type Config struct {
	Input           string         `yaml:"input"`
	OutputDir       string         `yaml:"output_dir"`
	ChunkSize       string         `yaml:"chunk_size"`
	ReadBufferBytes int            `yaml:"read_buffer_bytes"`
	FilePattern     string         `yaml:"file_pattern"`
	FirstIndex      int            `yaml:"first_index"`
	Compression     string         `yaml:"compression"`
	Archive         bool           `yaml:"archive"`
	Validate        ValidateConfig `yaml:"validate"`
	Load            LoadConfig     `yaml:"load"`
	Storage         StorageConfig  `yaml:"storage"`
	Logging         Logging        `yaml:"logging"`
}

// ValidateConfig controls parsing finished chunks with the TiDB parser.
type ValidateConfig struct {
	Enabled  bool `yaml:"enabled"`
	FailFast bool `yaml:"fail_fast"`
}

// LoadConfig configures applying chunks to a MySQL-compatible database.
type LoadConfig struct {
	DSN                string `yaml:"dsn"`
	Database           string `yaml:"database"`
	StatementTimeoutMs int    `yaml:"statement_timeout_ms"`
}

// Logging controls stdout logging behavior.
type Logging struct {
	Verbose bool   `yaml:"verbose"`
	LogFile string `yaml:"log_file"`
}

// StorageConfig holds external storage settings.
type StorageConfig struct {
	S3  S3Config  `yaml:"s3"`
	GCS GCSConfig `yaml:"gcs"`
}

// CloudEnabled reports whether any cloud storage backend is enabled.
func (s StorageConfig) CloudEnabled() bool {
	return s.GCS.Enabled || s.S3.Enabled
}

// S3Config configures S3 uploads (legacy and S3-compatible endpoints).
type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

// GCSConfig configures GCS uploads.
type GCSConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	CredentialsFile string `yaml:"credentials_file"`
}

// Compression codecs for chunk files.
const (
	CompressionNone = "none"
	CompressionZstd = "zstd"
)

const (
	chunkSizeDefault          = "10mb"
	readBufferBytesDefault    = 8 * 1024
	filePatternDefault        = "%d.sql"
	outputDirDefault          = "chunks"
	statementTimeoutMsDefault = 60000
	loadDatabaseDefault       = "dumpsplit"
)

// Load reads configuration from a YAML file. An empty path yields defaults.
func Load(path string) (Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "parse config %s", path)
		}
	}
	normalizeConfig(&cfg)
	return cfg, nil
}

// Check reports the options a split run cannot start without.
func (c Config) Check() error {
	if strings.TrimSpace(c.Input) == "" {
		return errors.New("input file is required")
	}
	if _, err := ParseSize(c.ChunkSize); err != nil {
		return err
	}
	switch c.Compression {
	case CompressionNone, CompressionZstd:
	default:
		return errors.Errorf("unknown compression %q, choose from none or zstd", c.Compression)
	}
	if strings.Count(c.FilePattern, "%d") != 1 {
		return errors.Errorf("file_pattern %q must contain exactly one %%d", c.FilePattern)
	}
	return nil
}

// Budget returns the parsed chunk size in bytes.
func (c Config) Budget() (int64, error) {
	return ParseSize(c.ChunkSize)
}

// ParseSize converts a size such as "512kb", "10mb" or "1gb" into bytes.
// A bare number is taken as a byte count. Suffixes are case-insensitive.
func ParseSize(raw string) (int64, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return 0, errors.New("chunk size is required")
	}
	multiplier := int64(1)
	number := value
	if !isAllDigits(value) {
		if len(value) < 3 {
			return 0, errors.Errorf("chunk size %q has invalid length", raw)
		}
		number, multiplier = value[:len(value)-2], unitMultiplier(value[len(value)-2:])
		if multiplier == 0 {
			return 0, errors.Errorf("chunk size %q has invalid format, choose from kb, mb or gb", raw)
		}
	}
	n, err := strconv.ParseInt(strings.TrimSpace(number), 10, 64)
	if err != nil {
		return 0, errors.Errorf("unable to parse chunk size number %q", raw)
	}
	if n <= 0 {
		return 0, errors.Errorf("chunk size %q must be positive", raw)
	}
	if n > math.MaxInt64/multiplier {
		return 0, errors.Errorf("chunk size %q is too large", raw)
	}
	return n * multiplier, nil
}

func unitMultiplier(suffix string) int64 {
	switch suffix {
	case "kb":
		return 1 << 10
	case "mb":
		return 1 << 20
	case "gb":
		return 1 << 30
	default:
		return 0
	}
}

func isAllDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

// UpdateDatabaseInDSN replaces the database name in the DSN path with dbName.
// It preserves query parameters, if any.
func UpdateDatabaseInDSN(dsn string, dbName string) string {
	if dsn == "" || dbName == "" {
		return dsn
	}
	slash := strings.Index(dsn, "/")
	if slash < 0 {
		return dsn
	}
	query := strings.Index(dsn[slash+1:], "?")
	if query >= 0 {
		query = slash + 1 + query
		return dsn[:slash+1] + dbName + dsn[query:]
	}
	return dsn[:slash+1] + dbName
}

// AdminDSN strips the database name from a DSN while preserving query parameters.
func AdminDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	slash := strings.Index(dsn, "/")
	if slash < 0 {
		return dsn
	}
	query := strings.Index(dsn[slash+1:], "?")
	if query >= 0 {
		query = slash + 1 + query
		return dsn[:slash+1] + dsn[query:]
	}
	return dsn[:slash+1]
}

func normalizeConfig(cfg *Config) {
	cfg.Input = strings.TrimSpace(cfg.Input)
	cfg.ChunkSize = strings.TrimSpace(cfg.ChunkSize)
	if cfg.ChunkSize == "" {
		cfg.ChunkSize = chunkSizeDefault
	}
	if cfg.ReadBufferBytes <= 0 {
		cfg.ReadBufferBytes = readBufferBytesDefault
	}
	if strings.TrimSpace(cfg.OutputDir) == "" {
		cfg.OutputDir = outputDirDefault
	}
	if cfg.FilePattern == "" {
		cfg.FilePattern = filePatternDefault
	}
	if cfg.FirstIndex <= 0 {
		cfg.FirstIndex = 1
	}
	cfg.Compression = strings.ToLower(strings.TrimSpace(cfg.Compression))
	if cfg.Compression == "" {
		cfg.Compression = CompressionNone
	}
	if cfg.Validate.FailFast {
		cfg.Validate.Enabled = true
	}
	if cfg.Load.StatementTimeoutMs <= 0 {
		cfg.Load.StatementTimeoutMs = statementTimeoutMsDefault
	}
	if cfg.Load.Database == "" {
		cfg.Load.Database = loadDatabaseDefault
	}
}

func defaultConfig() Config {
	return Config{
		OutputDir:       outputDirDefault,
		ChunkSize:       chunkSizeDefault,
		ReadBufferBytes: readBufferBytesDefault,
		FilePattern:     filePatternDefault,
		FirstIndex:      1,
		Compression:     CompressionNone,
		Load: LoadConfig{
			DSN:                "root:@tcp(127.0.0.1:4000)/",
			Database:           loadDatabaseDefault,
			StatementTimeoutMs: statementTimeoutMsDefault,
		},
	}
}
