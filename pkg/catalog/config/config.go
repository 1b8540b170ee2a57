package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"skusync/pkg/collection"
)

var (
	// EnvVars lists the variables that must be present in the environment
	EnvVars = []string{
		"POSTGRES_USER",
		"POSTGRES_PASSWORD",
	}
)

type postgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DB       string `yaml:"db"`
	SSLMode  string `yaml:"sslmode"`
	user     string
	password string
}

type elasticConfig struct {
	URL      string `yaml:"url"`
	Index    string `yaml:"index"`
	user     string
	password string
}

type feedConfig struct {
	Path string `yaml:"path"`
}

// File contains all settings for one ingestion run
type File struct {
	Postgres postgresConfig `yaml:"postgres"`
	Elastic  elasticConfig  `yaml:"elasticsearch"`
	Feed     feedConfig     `yaml:"feed"`
}

// New returns a pointer to a config object. Hosts, ports and paths come
// from the YAML file; credentials come from the environment. The
// PATH_TO_FILE variable overrides the configured feed path.
func New(filePath string) (cfg *File, err error) {
	cfg = new(File)

	yamlFile, err := os.ReadFile(filePath)
	if err != nil {
		return cfg, err
	}

	err = yaml.Unmarshal(yamlFile, &cfg)
	if err != nil {
		return cfg, err
	}

	envs, err := getEnvs(EnvVars)
	if err != nil {
		return cfg, err
	}

	cfg.Postgres.user = envs["POSTGRES_USER"]
	cfg.Postgres.password = envs["POSTGRES_PASSWORD"]

	// Elasticsearch may run without security enabled in development
	cfg.Elastic.user = os.Getenv("ELASTIC_USER")
	cfg.Elastic.password = os.Getenv("ELASTIC_PASSWORD")

	if p := os.Getenv("PATH_TO_FILE"); p != "" {
		cfg.Feed.Path = p
	}

	if cfg.Postgres.Port == 0 {
		cfg.Postgres.Port = 5432
	}
	if cfg.Postgres.SSLMode == "" {
		cfg.Postgres.SSLMode = "disable"
	}
	if cfg.Elastic.Index == "" {
		cfg.Elastic.Index = "sku"
	}

	return cfg, nil
}

// SetFeedPath lets you override the feed path from the config file
func (cfg *File) SetFeedPath(path string) {
	cfg.Feed.Path = path
}

// GetPostgres returns the database connection string - error if incomplete
func (cfg *File) GetPostgres() (dsn string, err error) {
	if collection.AnyEmpty(
		[]*string{
			&cfg.Postgres.Host,
			&cfg.Postgres.DB,
			&cfg.Postgres.user,
			&cfg.Postgres.password,
		},
	) {
		return dsn, fmt.Errorf("Postgres config incomplete")
	}

	dsn = fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Postgres.user,
		cfg.Postgres.password,
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.DB,
		cfg.Postgres.SSLMode,
	)

	return dsn, nil
}

// GetElastic returns URL, credentials, and index name for the search engine
func (cfg *File) GetElastic() (url, user, password, index string, err error) {
	if cfg.Elastic.URL == "" {
		return url, user, password, index, fmt.Errorf("Elasticsearch URL not set")
	}
	return cfg.Elastic.URL, cfg.Elastic.user, cfg.Elastic.password, cfg.Elastic.Index, nil
}

// GetFeed returns the path to the input feed file - error if not set
func (cfg *File) GetFeed() (path string, err error) {
	if cfg.Feed.Path == "" {
		return path, fmt.Errorf("Feed path not set")
	}
	return cfg.Feed.Path, nil
}

func getEnvs(names []string) (map[string]string, error) {
	variables := make(map[string]string, len(names))
	for _, n := range names {
		variables[n] = os.Getenv(n)
		if variables[n] == "" {
			return variables, fmt.Errorf("Couldn't find env variable: %s", n)
		}
	}
	return variables, nil
}
