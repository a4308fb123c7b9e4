package models

import (
	"fmt"
	"reflect"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/chrisdamba/bhtraffic/internal/vehicleclass"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type DatasetConfig struct {
	Name    string `mapstructure:"name"`
	MinDate Date   `mapstructure:"min_date"`
	MaxDate Date   `mapstructure:"max_date"`
	// Location the sensor timestamps are interpreted in. The default UTC
	// takes stored timestamps as they are; the city export writes local wall
	// clock time without an offset.
	TimeZone string `mapstructure:"time_zone"`
}

func (d DatasetConfig) Bounds() DateRange {
	return DateRange{From: d.MinDate, To: d.MaxDate}
}

type S3Config struct {
	Region string `mapstructure:"region"`
	Bucket string `mapstructure:"bucket"`
	Key    string `mapstructure:"key"`
}

type DatabaseConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

type SourceConfig struct {
	Type     string         `mapstructure:"type"`
	Path     string         `mapstructure:"path"`
	S3       S3Config       `mapstructure:"s3"`
	Postgres DatabaseConfig `mapstructure:"postgres"`
	SQLite   DatabaseConfig `mapstructure:"sqlite"`
	// Pushdown lets sources skip data by month and class before decoding rows.
	Pushdown bool `mapstructure:"pushdown"`
}

type CacheConfig struct {
	Type       string        `mapstructure:"type"`
	TTL        time.Duration `mapstructure:"ttl"`
	MaxEntries int           `mapstructure:"max_entries"`
	RedisAddr  string        `mapstructure:"redis_addr"`
	RedisPass  string        `mapstructure:"redis_password"`
	RedisDB    int           `mapstructure:"redis_db"`
}

type OutputConfig struct {
	Format      string   `mapstructure:"format"`
	Destination string   `mapstructure:"destination"`
	Path        string   `mapstructure:"path"`
	S3          S3Config `mapstructure:"s3"`
	TopN        int      `mapstructure:"top_n"`
	// CRS of emitted coordinates, EPSG:4326 or EPSG:3857.
	CRS string `mapstructure:"crs"`
}

type KafkaConfig struct {
	BrokerList string `mapstructure:"broker_list"`
	Topic      string `mapstructure:"topic"`
}

type BoundaryConfig struct {
	Path string `mapstructure:"path"`
	Name string `mapstructure:"name"`
}

type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	FilePath   string `mapstructure:"file_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type GeneratorConfig struct {
	Seed         int64   `mapstructure:"seed"`
	Sensors      int     `mapstructure:"sensors"`
	CityLat      float64 `mapstructure:"city_latitude"`
	CityLon      float64 `mapstructure:"city_longitude"`
	UrbanRadius  float64 `mapstructure:"urban_radius"`
	RowGroupSize int64   `mapstructure:"row_group_size"`
	// Share of rows written with unparseable coordinates.
	MalformedRate float64 `mapstructure:"malformed_rate"`
	// Codes written to the CLASS column, keyed by label. Defaults to class_codes.
	ClassCodes map[string]string `mapstructure:"class_codes"`
}

type Config struct {
	Dataset       DatasetConfig     `mapstructure:"dataset"`
	Source        SourceConfig      `mapstructure:"source"`
	ClassCodes    map[string]string `mapstructure:"class_codes"`
	StrictClasses bool              `mapstructure:"strict_classes"`
	Cache         CacheConfig       `mapstructure:"cache"`
	Output        OutputConfig      `mapstructure:"output"`
	Kafka         KafkaConfig       `mapstructure:"kafka"`
	Boundary      BoundaryConfig    `mapstructure:"boundary"`
	Server        ServerConfig      `mapstructure:"server"`
	Logging       LoggingConfig     `mapstructure:"logging"`
	Generator     GeneratorConfig   `mapstructure:"generator"`
}

const (
	SourceParquet  = "parquet"
	SourceS3       = "s3"
	SourcePostgres = "postgres"
	SourceSQLite   = "sqlite"

	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"

	OutputConsole = "console"
	OutputCSV     = "csv"
	OutputJSON    = "json"
	OutputGeoJSON = "geojson"
	OutputParquet = "parquet"
	OutputKafka   = "kafka"

	DestinationLocal = "local"
	DestinationS3    = "s3"

	CRSWGS84       = "EPSG:4326"
	CRSWebMercator = "EPSG:3857"
)

// SetDefaults registers every default on v. The Belo Horizonte export covers
// January and February 2022.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("dataset.name", "bh-vehicle-counts")
	v.SetDefault("dataset.min_date", "2022-01-01")
	v.SetDefault("dataset.max_date", "2022-02-28")
	v.SetDefault("dataset.time_zone", "UTC")

	v.SetDefault("source.type", SourceParquet)
	v.SetDefault("source.path", "data/vehicles_count.parquet")
	v.SetDefault("source.pushdown", true)
	v.SetDefault("source.postgres.table", "vehicle_counts")
	v.SetDefault("source.postgres.max_conns", 4)
	v.SetDefault("source.sqlite.table", "vehicle_counts")

	v.SetDefault("strict_classes", true)

	v.SetDefault("cache.type", CacheMemory)
	v.SetDefault("cache.ttl", "10m")
	v.SetDefault("cache.max_entries", 256)
	v.SetDefault("cache.redis_addr", "localhost:6379")

	v.SetDefault("output.format", "console")
	v.SetDefault("output.destination", DestinationLocal)
	v.SetDefault("output.top_n", 5)
	v.SetDefault("output.crs", CRSWGS84)

	v.SetDefault("kafka.broker_list", "localhost:9092")
	v.SetDefault("kafka.topic", "traffic-aggregates")

	v.SetDefault("boundary.path", "map/mg.json")
	v.SetDefault("boundary.name", "Belo Horizonte")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 10)
	v.SetDefault("logging.max_age_days", 30)

	v.SetDefault("generator.seed", 42)
	v.SetDefault("generator.sensors", 300)
	v.SetDefault("generator.city_latitude", -19.9167)
	v.SetDefault("generator.city_longitude", -43.9345)
	v.SetDefault("generator.urban_radius", 9.0)
	v.SetDefault("generator.row_group_size", 128*1024*1024)
}

// LoadConfig reads cfgFile (or ./bhtraffic.yaml, $HOME/.bhtraffic.yaml) into a
// Config. Environment variables use the BHTRAFFIC_ prefix, e.g.
// BHTRAFFIC_SOURCE_TYPE=postgres.
func LoadConfig(v *viper.Viper, cfgFile string) (*Config, error) {
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
		v.SetConfigName("bhtraffic")
	}

	v.SetEnvPrefix("bhtraffic")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound || cfgFile != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	decoderConfigOption := viper.DecoderConfigOption(func(config *mapstructure.DecoderConfig) {
		config.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			config.DecodeHook,
			stringToDateHookFunc(),
		)
	})
	if err := v.Unmarshal(&config, decoderConfigOption); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func stringToDateHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if t != reflect.TypeOf(Date{}) {
			return data, nil
		}
		switch v := data.(type) {
		case time.Time:
			return DateOf(v), nil
		case string:
			if v == "" {
				return Date{}, nil
			}
			return ParseDate(v)
		}
		return data, nil
	}
}

// ClassTable builds the vehicle class table from class_codes.
func (cfg *Config) ClassTable() (*vehicleclass.Table, error) {
	return vehicleclass.TableFromLabels(cfg.ClassCodes)
}

// Location returns the dataset time zone, UTC when unset.
func (cfg *Config) Location() (*time.Location, error) {
	if cfg.Dataset.TimeZone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(cfg.Dataset.TimeZone)
}

func (cfg *Config) Validate() error {
	var errors []string

	if cfg.Dataset.MinDate.After(cfg.Dataset.MaxDate) {
		errors = append(errors, fmt.Sprintf("dataset.min_date %s is after dataset.max_date %s", cfg.Dataset.MinDate, cfg.Dataset.MaxDate))
	}
	if _, err := cfg.Location(); err != nil {
		errors = append(errors, fmt.Sprintf("dataset.time_zone: %v", err))
	}

	switch cfg.Source.Type {
	case SourceParquet:
		if cfg.Source.Path == "" {
			errors = append(errors, "source.path is required for parquet sources")
		}
	case SourceS3:
		if cfg.Source.S3.Bucket == "" || cfg.Source.S3.Key == "" {
			errors = append(errors, "source.s3.bucket and source.s3.key are required for s3 sources")
		}
	case SourcePostgres:
		if cfg.Source.Postgres.DSN == "" {
			errors = append(errors, "source.postgres.dsn is required for postgres sources")
		}
	case SourceSQLite:
		if cfg.Source.SQLite.DSN == "" {
			errors = append(errors, "source.sqlite.dsn is required for sqlite sources")
		}
	default:
		errors = append(errors, fmt.Sprintf("unsupported source.type %q", cfg.Source.Type))
	}

	if _, err := cfg.ClassTable(); err != nil {
		errors = append(errors, err.Error())
	}

	switch cfg.Cache.Type {
	case CacheNone, CacheMemory, CacheRedis, "":
	default:
		errors = append(errors, fmt.Sprintf("unsupported cache.type %q", cfg.Cache.Type))
	}

	switch cfg.Output.Format {
	case OutputConsole, OutputCSV, OutputJSON, OutputGeoJSON, OutputParquet, "":
	case OutputKafka:
		if cfg.Kafka.BrokerList == "" {
			errors = append(errors, "kafka.broker_list is required for kafka output")
		}
	default:
		errors = append(errors, fmt.Sprintf("unsupported output.format %q", cfg.Output.Format))
	}
	if cfg.Output.Format == OutputParquet && cfg.Output.Destination != DestinationS3 && cfg.Output.Path == "" {
		errors = append(errors, "output.path is required for parquet output")
	}

	switch cfg.Output.Destination {
	case DestinationLocal, "":
	case DestinationS3:
		if cfg.Output.S3.Bucket == "" {
			errors = append(errors, "output.s3.bucket is required for s3 output")
		}
	default:
		errors = append(errors, fmt.Sprintf("unsupported output.destination %q", cfg.Output.Destination))
	}

	switch cfg.Output.CRS {
	case CRSWGS84, CRSWebMercator, "":
	default:
		errors = append(errors, fmt.Sprintf("unsupported output.crs %q", cfg.Output.CRS))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, ", "))
	}
	return nil
}
