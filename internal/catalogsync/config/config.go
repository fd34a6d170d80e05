package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"
)

// Version is the configuration file format this build understands.
const Version = "0.2.0"

var versionConstraint *semver.Constraints

func init() {
	var err error
	versionConstraint, err = semver.NewConstraint("~" + Version)
	if err != nil {
		panic(err)
	}
}

// DBConfig holds the connection parameters of a PostgreSQL database
type DBConfig struct {
	Host     string `toml:"host"`     // Database host
	Port     int    `toml:"port"`     // Database port
	DBName   string `toml:"dbname"`   // Database name
	User     string `toml:"user"`     // Database user
	Password string `toml:"password"` // Database password
	SSLMode  string `toml:"sslmode"`  // SSL mode for database connection
}

// DSN returns the database connection string
func (d *DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// DatagisConfig holds the spatial store and GIS import settings
type DatagisConfig struct {
	DBConfig
	Schema               string `toml:"schema"`                  // Schema the imported tables are written to
	MaxLayersPerResource int    `toml:"max_layers_per_resource"` // Cap on derived tables per resource
	DownloadSizeLimit    int64  `toml:"download_size_limit"`     // Maximum size in bytes of a remote download
	WorkDir              string `toml:"work_dir"`                // Scratch directory for downloads and archive extraction
	UploadDir            string `toml:"upload_dir"`              // Where uploaded resource files are kept
	Ogr2ogrPath          string `toml:"ogr2ogr_path"`
	OgrinfoPath          string `toml:"ogrinfo_path"`
	BboxEPSG             int    `toml:"bbox_epsg"` // CRS the dataset bounding boxes are expressed in
	ImportTimeout        string `toml:"import_timeout"`
}

// GetImportTimeout returns the import tool timeout as time.Duration
func (d *DatagisConfig) GetImportTimeout() time.Duration {
	duration, err := ParseDuration(d.ImportTimeout)
	if err != nil {
		panic(fmt.Sprintf("invalid datagis.import_timeout: %v", err))
	}
	return duration
}

// RemoteConfig holds the settings shared by the HTTP collaborators
type RemoteConfig struct {
	URL     string `toml:"url"`
	Timeout string `toml:"timeout"`
}

// GetTimeout returns the request timeout as time.Duration
// or panics if the value is invalid
func (r *RemoteConfig) GetTimeout() time.Duration {
	duration, err := ParseDuration(r.Timeout)
	if err != nil {
		panic(fmt.Sprintf("invalid timeout: %v", err))
	}
	return duration
}

// CkanConfig holds the catalog service settings
type CkanConfig struct {
	RemoteConfig
	APIKey            string `toml:"api_key"`
	DefaultMaintainer string `toml:"default_maintainer"`
	DefaultEmail      string `toml:"default_maintainer_email"`
}

// MRAConfig holds the map layer registry settings
type MRAConfig struct {
	RemoteConfig
	Username      string `toml:"username"`
	Password      string `toml:"password"`
	Datastore     string `toml:"datastore"`
	OwsURLPattern string `toml:"ows_url_pattern"` // e.g. https://ows.example.org/{organisation}?
	LegendCrsName string `toml:"legend_crs_description"`
}

// OwsURL returns the OGC service URL of an organisation workspace.
func (m *MRAConfig) OwsURL(workspace string) string {
	return strings.ReplaceAll(m.OwsURLPattern, "{organisation}", workspace)
}

// ExtractorConfig holds the extraction job service settings
type ExtractorConfig struct {
	RemoteConfig
	Source        string `toml:"source"` // Spatial store as seen from the extraction service
	DefaultDstSRS string `toml:"default_dst_srs"`
	FootprintSRS  string `toml:"footprint_srs"`
}

// ReconcilerConfig holds the orchestration settings
type ReconcilerConfig struct {
	TimeoutRecheckAttempts uint   `toml:"timeout_recheck_attempts"`
	TimeoutRecheckDelay    string `toml:"timeout_recheck_delay"`
}

// GetTimeoutRecheckDelay returns the delay between remote state re-checks
func (r *ReconcilerConfig) GetTimeoutRecheckDelay() time.Duration {
	duration, err := ParseDuration(r.TimeoutRecheckDelay)
	if err != nil {
		panic(fmt.Sprintf("invalid reconciler.timeout_recheck_delay: %v", err))
	}
	return duration
}

// AuthConfig holds the settings used to trust the identity forwarded by the front proxy
type AuthConfig struct {
	TrustedHeader string `toml:"trusted_header"` // Header carrying the acting username
	JWTSecret     string `toml:"jwt_secret"`     // If set, the identity must come as a HS256 bearer token
	Issuer        string `toml:"issuer"`
}

// ConfigParam holds all configuration parameters for the synchronization service
type ConfigParam struct {
	// Configuration version
	FormatVersion string `toml:"format_version"` // Version of this configuration file format

	// Server configuration
	ServerHostName     string   `toml:"server_hostname"`       // Hostname for the server
	ServerPort         string   `toml:"server_port"`           // Port for the main server
	HandleCORS         bool     `toml:"handle_cors"`           // Whether to handle CORS
	AllowedOrigins     []string `toml:"allowed_origins"`       // Origins accepted when CORS is handled
	MaxRequestBodySize int64    `toml:"max_request_body_size"` // Maximum size of request body in bytes
	RequestTimeout     string   `toml:"request_timeout"`

	Auth AuthConfig `toml:"auth"`

	// Local store
	DB DBConfig `toml:"db"`

	// Spatial store and import settings
	Datagis DatagisConfig `toml:"datagis"`

	Ckan       CkanConfig       `toml:"ckan"`
	MRA        MRAConfig        `toml:"mra"`
	Extractor  ExtractorConfig  `toml:"extractor"`
	Reconciler ReconcilerConfig `toml:"reconciler"`
}

var cfg *ConfigParam

// Config returns the current configuration
func Config() *ConfigParam {
	return cfg
}

// SetConfig installs c as the current configuration. Used by tests.
func SetConfig(c *ConfigParam) {
	cfg = c
}

// DSN returns the local store connection string
func (c *ConfigParam) DSN() string {
	return c.DB.DSN()
}

// ParseDuration parses a duration string in the format "<number><unit>" where unit can be:
// - y: years
// - d: days
// - h: hours
// - m: minutes
// - s: seconds
func ParseDuration(input string) (time.Duration, error) {
	if len(input) < 2 {
		return 0, fmt.Errorf("invalid input format")
	}

	unit := input[len(input)-1:]
	valueStr := input[:len(input)-1]
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid number: %s", err)
	}
	if value < 0 {
		return 0, fmt.Errorf("negative duration: %s", input)
	}

	var duration time.Duration
	switch unit {
	case "d":
		duration = time.Duration(value) * 24 * time.Hour
	case "h":
		duration = time.Duration(value) * time.Hour
	case "m":
		duration = time.Duration(value) * time.Minute
	case "s":
		duration = time.Duration(value) * time.Second
	case "y":
		// Assuming 1 year = 365 days for simplicity
		duration = time.Duration(value) * 365 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("unknown time unit: %s", unit)
	}

	return duration, nil
}

// ValidateConfig checks if all required configuration values are present and valid.
// Missing optional values are replaced by their defaults.
func ValidateConfig(cfg *ConfigParam) error {
	validators := []func(*ConfigParam) error{
		validateConfigFormatVersion,
		validateServerConfig,
		validateDBConfig,
		validateDatagisConfig,
		validateCkanConfig,
		validateMRAConfig,
		validateExtractorConfig,
		validateReconcilerConfig,
	}
	for _, v := range validators {
		if err := v(cfg); err != nil {
			return err
		}
	}
	return nil
}

func validateConfigFormatVersion(cfg *ConfigParam) error {
	v, err := semver.NewVersion(cfg.FormatVersion)
	if err != nil {
		return fmt.Errorf("invalid config file format version %q: %v", cfg.FormatVersion, err)
	}
	if !versionConstraint.Check(v) {
		return fmt.Errorf("unsupported config file format version: %s", cfg.FormatVersion)
	}
	return nil
}

func validateServerConfig(cfg *ConfigParam) error {
	if cfg.ServerPort == "" {
		return fmt.Errorf("server_port is required")
	}
	if cfg.MaxRequestBodySize <= 0 {
		cfg.MaxRequestBodySize = 1 << 20
	}
	if cfg.RequestTimeout == "" {
		cfg.RequestTimeout = "2h"
	}
	if _, err := ParseDuration(cfg.RequestTimeout); err != nil {
		return fmt.Errorf("invalid request_timeout: %v", err)
	}
	if cfg.Auth.TrustedHeader == "" {
		cfg.Auth.TrustedHeader = "X-Forwarded-User"
	}
	return nil
}

func validateDB(prefix string, db *DBConfig) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Port <= 0 {
		return fmt.Errorf("%s.port must be positive", prefix)
	}
	if db.DBName == "" {
		return fmt.Errorf("%s.dbname is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.SSLMode == "" {
		return fmt.Errorf("%s.sslmode is required", prefix)
	}
	return nil
}

func validateDBConfig(cfg *ConfigParam) error {
	return validateDB("db", &cfg.DB)
}

func validateDatagisConfig(cfg *ConfigParam) error {
	d := &cfg.Datagis
	if err := validateDB("datagis", &d.DBConfig); err != nil {
		return err
	}
	if d.Schema == "" {
		d.Schema = "public"
	}
	if d.MaxLayersPerResource <= 0 {
		d.MaxLayersPerResource = 100
	}
	if d.DownloadSizeLimit <= 0 {
		d.DownloadSizeLimit = 100 * 1024 * 1024
	}
	if d.WorkDir == "" {
		d.WorkDir = os.TempDir()
	}
	if d.UploadDir == "" {
		d.UploadDir = filepath.Join(d.WorkDir, "uploads")
	}
	if d.Ogr2ogrPath == "" {
		d.Ogr2ogrPath = "ogr2ogr"
	}
	if d.OgrinfoPath == "" {
		d.OgrinfoPath = "ogrinfo"
	}
	if d.BboxEPSG == 0 {
		d.BboxEPSG = 4171
	}
	if d.ImportTimeout == "" {
		d.ImportTimeout = "1h"
	}
	if _, err := ParseDuration(d.ImportTimeout); err != nil {
		return fmt.Errorf("invalid datagis.import_timeout: %v", err)
	}
	return nil
}

func validateRemote(prefix string, r *RemoteConfig, defaultTimeout string) error {
	if r.URL == "" {
		return fmt.Errorf("%s.url is required", prefix)
	}
	if r.Timeout == "" {
		r.Timeout = defaultTimeout
	}
	if _, err := ParseDuration(r.Timeout); err != nil {
		return fmt.Errorf("invalid %s.timeout: %v", prefix, err)
	}
	return nil
}

func validateCkanConfig(cfg *ConfigParam) error {
	if err := validateRemote("ckan", &cfg.Ckan.RemoteConfig, "60s"); err != nil {
		return err
	}
	if cfg.Ckan.APIKey == "" {
		return fmt.Errorf("ckan.api_key is required")
	}
	if cfg.Ckan.DefaultMaintainer == "" {
		cfg.Ckan.DefaultMaintainer = "Plateforme DataSud"
	}
	if cfg.Ckan.DefaultEmail == "" {
		cfg.Ckan.DefaultEmail = "contact@datasud.fr"
	}
	return nil
}

func validateMRAConfig(cfg *ConfigParam) error {
	if err := validateRemote("mra", &cfg.MRA.RemoteConfig, "1h"); err != nil {
		return err
	}
	if cfg.MRA.Datastore == "" {
		cfg.MRA.Datastore = "public"
	}
	if cfg.MRA.OwsURLPattern == "" {
		return fmt.Errorf("mra.ows_url_pattern is required")
	}
	if !strings.Contains(cfg.MRA.OwsURLPattern, "{organisation}") {
		return fmt.Errorf("mra.ows_url_pattern must contain {organisation}")
	}
	if cfg.MRA.LegendCrsName == "" {
		cfg.MRA.LegendCrsName = "RGF93 / Lambert-93"
	}
	return nil
}

func validateExtractorConfig(cfg *ConfigParam) error {
	if cfg.Extractor.URL == "" {
		// the extractor is optional
		return nil
	}
	if err := validateRemote("extractor", &cfg.Extractor.RemoteConfig, "30s"); err != nil {
		return err
	}
	if cfg.Extractor.DefaultDstSRS == "" {
		cfg.Extractor.DefaultDstSRS = "EPSG:2154"
	}
	if cfg.Extractor.FootprintSRS == "" {
		cfg.Extractor.FootprintSRS = "EPSG:4326"
	}
	if cfg.Extractor.Source == "" {
		d := &cfg.Datagis
		cfg.Extractor.Source = fmt.Sprintf("PG:host=%s port=%d dbname=%s user=%s", d.Host, d.Port, d.DBName, d.User)
	}
	return nil
}

func validateReconcilerConfig(cfg *ConfigParam) error {
	if cfg.Reconciler.TimeoutRecheckAttempts == 0 {
		cfg.Reconciler.TimeoutRecheckAttempts = 3
	}
	if cfg.Reconciler.TimeoutRecheckDelay == "" {
		cfg.Reconciler.TimeoutRecheckDelay = "5s"
	}
	if _, err := ParseDuration(cfg.Reconciler.TimeoutRecheckDelay); err != nil {
		return fmt.Errorf("invalid reconciler.timeout_recheck_delay: %v", err)
	}
	return nil
}

// applySecretsFromEnv overrides secrets with values from the environment, if set.
func applySecretsFromEnv(cfg *ConfigParam) {
	overrides := map[string]*string{
		"IDGO_DB_PASSWORD":      &cfg.DB.Password,
		"IDGO_DATAGIS_PASSWORD": &cfg.Datagis.Password,
		"IDGO_CKAN_API_KEY":     &cfg.Ckan.APIKey,
		"IDGO_MRA_PASSWORD":     &cfg.MRA.Password,
		"IDGO_JWT_SECRET":       &cfg.Auth.JWTSecret,
	}
	for env, target := range overrides {
		if v, ok := os.LookupEnv(env); ok && v != "" {
			*target = v
		}
	}
}

// LoadConfig loads configuration from a file
func LoadConfig(filename string) error {
	if filename == "" {
		return fmt.Errorf("config filename is required")
	}

	content, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	c, err := ParseConfig(string(content))
	if err != nil {
		return err
	}
	cfg = c
	return nil
}

// ParseConfig decodes and validates a TOML document.
func ParseConfig(content string) (*ConfigParam, error) {
	c := &ConfigParam{}
	if _, err := toml.Decode(content, c); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	applySecretsFromEnv(c)

	if err := ValidateConfig(c); err != nil {
		return nil, fmt.Errorf("invalid configuration: %v", err)
	}
	return c, nil
}
