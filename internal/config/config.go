// Package config gathers the settings shared by the lapdcalls tools from the
// environment, an optional .env file and command line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"lapdcalls/internal/pipeline"
	"lapdcalls/internal/publish"
	"lapdcalls/internal/socrata"
	"lapdcalls/internal/store"
)

const (
	DefaultCurrentEndpoint    = "xjgu-z4ju"
	DefaultCurrentVintageName = "LAPD Calls for Service 2024 to Present"
	DefaultCatalogQuery       = "LAPD calls for service"
	DefaultFreshnessDays      = 7
	DefaultParquetPath        = "lapd_calls_for_service.parquet"
	DefaultSQLitePath         = "lapd_calls_for_service.db"
	DefaultBackupDir          = "backups"
)

type Config struct {
	BoundaryYear  int
	FreshnessDays int
	Force         bool

	CurrentEndpoint    string
	CurrentVintageName string
	Domain             string
	CatalogURL         string
	CatalogQuery       string
	AppToken           string
	PageSize           int
	PageDelay          time.Duration

	ParquetPath string
	SQLitePath  string
	BackupDir   string

	Verbose     bool
	MetricsAddr string

	Publish publish.Options
}

func Default() Config {
	return Config{
		FreshnessDays:      DefaultFreshnessDays,
		CurrentEndpoint:    DefaultCurrentEndpoint,
		CurrentVintageName: DefaultCurrentVintageName,
		Domain:             socrata.DefaultDomain,
		CatalogURL:         socrata.DefaultCatalogURL,
		CatalogQuery:       DefaultCatalogQuery,
		PageSize:           socrata.DefaultPageSize,
		PageDelay:          socrata.DefaultPageDelay,
		ParquetPath:        DefaultParquetPath,
		SQLitePath:         DefaultSQLitePath,
		BackupDir:          DefaultBackupDir,
		Publish:            publish.Options{UseSSL: true},
	}
}

// FromEnv overlays environment variables on the defaults. lookup is
// os.LookupEnv outside of tests.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	c := Default()
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	num("LAPD_BOUNDARY_YEAR", &c.BoundaryYear)
	num("LAPD_FRESHNESS_DAYS", &c.FreshnessDays)
	boolean("LAPD_FORCE", &c.Force)
	str("LAPD_CURRENT_ENDPOINT", &c.CurrentEndpoint)
	str("LAPD_CURRENT_VINTAGE_NAME", &c.CurrentVintageName)
	str("LAPD_DOMAIN", &c.Domain)
	str("LAPD_CATALOG_URL", &c.CatalogURL)
	str("LAPD_CATALOG_QUERY", &c.CatalogQuery)
	str("SOCRATA_APP_TOKEN", &c.AppToken)
	num("LAPD_PAGE_SIZE", &c.PageSize)
	if v, ok := lookup("LAPD_PAGE_DELAY"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("LAPD_PAGE_DELAY: %w", err))
		} else {
			c.PageDelay = d
		}
	}
	str("LAPD_PARQUET_PATH", &c.ParquetPath)
	str("LAPD_SQLITE_PATH", &c.SQLitePath)
	str("LAPD_BACKUP_DIR", &c.BackupDir)
	boolean("LAPD_VERBOSE", &c.Verbose)
	str("LAPD_METRICS_ADDR", &c.MetricsAddr)

	str("LAPD_PUBLISH_ENDPOINT", &c.Publish.Endpoint)
	str("LAPD_PUBLISH_BUCKET", &c.Publish.Bucket)
	str("LAPD_PUBLISH_PREFIX", &c.Publish.Prefix)
	str("LAPD_PUBLISH_ACCESS_KEY", &c.Publish.AccessKey)
	str("LAPD_PUBLISH_SECRET_KEY", &c.Publish.SecretKey)
	boolean("LAPD_PUBLISH_USE_SSL", &c.Publish.UseSSL)
	return c, errors.Join(errs...)
}

// RegisterFlags binds the shared flags to c, using its current values as
// defaults. Call it after FromEnv so flags override the environment.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.BoundaryYear, "boundary-year", c.BoundaryYear, "Incremental cut year, 0 derives it from the current dataset name (or set LAPD_BOUNDARY_YEAR)")
	fs.IntVar(&c.FreshnessDays, "freshness-days", c.FreshnessDays, "Skip the update unless the source changed within this many days (or set LAPD_FRESHNESS_DAYS)")
	fs.StringVar(&c.CurrentEndpoint, "current-endpoint", c.CurrentEndpoint, "Dataset id of the rolling current vintage (or set LAPD_CURRENT_ENDPOINT)")
	fs.StringVar(&c.CurrentVintageName, "current-name", c.CurrentVintageName, "Name of the rolling current vintage (or set LAPD_CURRENT_VINTAGE_NAME)")
	fs.StringVar(&c.Domain, "domain", c.Domain, "Open data portal domain (or set LAPD_DOMAIN)")
	fs.StringVar(&c.CatalogURL, "catalog-url", c.CatalogURL, "Discovery catalog URL (or set LAPD_CATALOG_URL)")
	fs.StringVar(&c.CatalogQuery, "catalog-query", c.CatalogQuery, "Catalog search query (or set LAPD_CATALOG_QUERY)")
	fs.IntVar(&c.PageSize, "page-size", c.PageSize, "Records per API page (or set LAPD_PAGE_SIZE)")
	fs.DurationVar(&c.PageDelay, "page-delay", c.PageDelay, "Pause between API pages (or set LAPD_PAGE_DELAY)")
	fs.StringVar(&c.ParquetPath, "parquet", c.ParquetPath, "Parquet output path (or set LAPD_PARQUET_PATH)")
	fs.StringVar(&c.SQLitePath, "sqlite", c.SQLitePath, "SQLite output path (or set LAPD_SQLITE_PATH)")
	fs.StringVar(&c.BackupDir, "backup-dir", c.BackupDir, "Backup directory (or set LAPD_BACKUP_DIR)")
	fs.BoolVar(&c.Verbose, "verbose", c.Verbose, "enable verbose (debug) logging")
	fs.StringVar(&c.MetricsAddr, "metrics-addr", c.MetricsAddr, "Address to listen on for prometheus metrics, empty disables")
}

// RegisterPublishFlags binds the artifact upload flags.
func (c *Config) RegisterPublishFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Publish.Bucket, "publish-bucket", c.Publish.Bucket, "Upload the outputs to this bucket, empty disables (or set LAPD_PUBLISH_BUCKET)")
	fs.StringVar(&c.Publish.Endpoint, "publish-endpoint", c.Publish.Endpoint, "S3-compatible endpoint host:port (or set LAPD_PUBLISH_ENDPOINT)")
	fs.StringVar(&c.Publish.Prefix, "publish-prefix", c.Publish.Prefix, "Object key prefix (or set LAPD_PUBLISH_PREFIX)")
	fs.BoolVar(&c.Publish.UseSSL, "publish-use-ssl", c.Publish.UseSSL, "Use TLS for the publish endpoint (or set LAPD_PUBLISH_USE_SSL)")
}

// Load reads .env when present, then the environment, then the flags in args.
// Extra flags must already be registered on fs.
func Load(fs *flag.FlagSet, args []string) (Config, error) {
	_ = godotenv.Load()
	c, err := FromEnv(os.LookupEnv)
	if err != nil {
		return c, err
	}
	c.RegisterFlags(fs)
	c.RegisterPublishFlags(fs)
	if err := fs.Parse(args); err != nil {
		return c, err
	}
	return c, c.Validate()
}

func (c Config) Validate() error {
	var errs []error
	if c.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("page size must be positive, got %d", c.PageSize))
	}
	if c.FreshnessDays < 0 {
		errs = append(errs, fmt.Errorf("freshness days must not be negative, got %d", c.FreshnessDays))
	}
	if c.BoundaryYear < 0 {
		errs = append(errs, fmt.Errorf("boundary year must not be negative, got %d", c.BoundaryYear))
	}
	for _, p := range []struct{ name, path string }{
		{"parquet", c.ParquetPath},
		{"sqlite", c.SQLitePath},
		{"backup dir", c.BackupDir},
	} {
		if p.path == "" {
			errs = append(errs, fmt.Errorf("%s path must not be empty", p.name))
		}
	}
	if c.CurrentEndpoint == "" {
		errs = append(errs, errors.New("current endpoint must not be empty"))
	}
	if c.Publish.Bucket != "" && c.Publish.Endpoint == "" {
		errs = append(errs, errors.New("publish endpoint is required with a publish bucket"))
	}
	return errors.Join(errs...)
}

func (c Config) StorePaths() store.Paths {
	return store.Paths{Parquet: c.ParquetPath, SQLite: c.SQLitePath, BackupDir: c.BackupDir}
}

func (c Config) SocrataOptions() socrata.Options {
	return socrata.Options{
		Domain:     c.Domain,
		CatalogURL: c.CatalogURL,
		AppToken:   c.AppToken,
		PageSize:   c.PageSize,
		PageDelay:  c.PageDelay,
	}
}

func (c Config) Pipeline() pipeline.Config {
	return pipeline.Config{
		BoundaryYear:       c.BoundaryYear,
		FreshnessDays:      c.FreshnessDays,
		Force:              c.Force,
		CurrentEndpoint:    c.CurrentEndpoint,
		CurrentVintageName: c.CurrentVintageName,
		CatalogQuery:       c.CatalogQuery,
	}
}
