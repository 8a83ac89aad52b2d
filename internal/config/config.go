package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	MinIO    MinIOConfig    `yaml:"minio"`
	Features FeaturesConfig `yaml:"features"`
	Matching MatchingConfig `yaml:"matching"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type FeaturesConfig struct {
	ModelsDir   string `yaml:"models_dir"`
	WorkerCount int    `yaml:"worker_count"`
}

// MatchingConfig centralizes every tunable of the matching policy.
// Weights apply to the six sub-scores and are renormalized at scoring
// time over the signals actually present on a pair.
type MatchingConfig struct {
	MinScore        int           `yaml:"min_score"`         // creation floor for new matches
	TopK            int           `yaml:"top_k"`             // max candidates scored per photo
	FetchLimit      int           `yaml:"fetch_limit"`       // max candidates pulled from the store before proxy ranking
	MaxRadiusKM     float64       `yaml:"max_radius_km"`     // geographic candidate radius and location-score falloff
	RecencyWindow   time.Duration `yaml:"recency_window"`    // how far back candidate cases may reach
	RetentionWindow time.Duration `yaml:"retention_window"`  // unresolved matches older than this expire
	SweepInterval   time.Duration `yaml:"sweep_interval"`    // expiry sweep cadence
	ScoreWorkers    int           `yaml:"score_workers"`     // parallel pairwise comparisons per photo
	MaxHashDistance int           `yaml:"max_hash_distance"` // hamming bits mapping to score 0
	MaxColorDist    float64       `yaml:"max_color_dist"`    // RGB euclidean distance mapping to score 0
	CombinedMargin  int           `yaml:"combined_margin"`   // sub-scores within this of the max count as dominant
	Weights         WeightsConfig `yaml:"weights"`
}

// UnmarshalYAML accepts Go duration strings ("30m", "720h") for the
// window fields, which yaml cannot decode into time.Duration on its own.
func (m *MatchingConfig) UnmarshalYAML(value *yaml.Node) error {
	type raw struct {
		MinScore        int           `yaml:"min_score"`
		TopK            int           `yaml:"top_k"`
		FetchLimit      int           `yaml:"fetch_limit"`
		MaxRadiusKM     float64       `yaml:"max_radius_km"`
		RecencyWindow   string        `yaml:"recency_window"`
		RetentionWindow string        `yaml:"retention_window"`
		SweepInterval   string        `yaml:"sweep_interval"`
		ScoreWorkers    int           `yaml:"score_workers"`
		MaxHashDistance int           `yaml:"max_hash_distance"`
		MaxColorDist    float64       `yaml:"max_color_dist"`
		CombinedMargin  int           `yaml:"combined_margin"`
		Weights         WeightsConfig `yaml:"weights"`
	}
	var r raw
	if err := value.Decode(&r); err != nil {
		return err
	}

	m.MinScore = r.MinScore
	m.TopK = r.TopK
	m.FetchLimit = r.FetchLimit
	m.MaxRadiusKM = r.MaxRadiusKM
	m.ScoreWorkers = r.ScoreWorkers
	m.MaxHashDistance = r.MaxHashDistance
	m.MaxColorDist = r.MaxColorDist
	m.CombinedMargin = r.CombinedMargin
	m.Weights = r.Weights

	for _, f := range []struct {
		src string
		dst *time.Duration
	}{
		{r.RecencyWindow, &m.RecencyWindow},
		{r.RetentionWindow, &m.RetentionWindow},
		{r.SweepInterval, &m.SweepInterval},
	} {
		if f.src == "" {
			continue
		}
		d, err := time.ParseDuration(f.src)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", f.src, err)
		}
		*f.dst = d
	}
	return nil
}

type WeightsConfig struct {
	Embedding float64 `yaml:"embedding"`
	Hash      float64 `yaml:"hash"`
	Text      float64 `yaml:"text"`
	Color     float64 `yaml:"color"`
	Visual    float64 `yaml:"visual"`
	Shape     float64 `yaml:"shape"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.Features.WorkerCount == 0 {
		cfg.Features.WorkerCount = 4
	}
	if cfg.Matching.MinScore == 0 {
		cfg.Matching.MinScore = 30
	}
	if cfg.Matching.TopK == 0 {
		cfg.Matching.TopK = 25
	}
	if cfg.Matching.FetchLimit == 0 {
		cfg.Matching.FetchLimit = 200
	}
	if cfg.Matching.MaxRadiusKM == 0 {
		cfg.Matching.MaxRadiusKM = 50
	}
	if cfg.Matching.RecencyWindow == 0 {
		cfg.Matching.RecencyWindow = 90 * 24 * time.Hour
	}
	if cfg.Matching.RetentionWindow == 0 {
		cfg.Matching.RetentionWindow = 30 * 24 * time.Hour
	}
	if cfg.Matching.SweepInterval == 0 {
		cfg.Matching.SweepInterval = time.Hour
	}
	if cfg.Matching.ScoreWorkers == 0 {
		cfg.Matching.ScoreWorkers = 8
	}
	if cfg.Matching.MaxHashDistance == 0 {
		cfg.Matching.MaxHashDistance = 24
	}
	if cfg.Matching.MaxColorDist == 0 {
		cfg.Matching.MaxColorDist = 120
	}
	if cfg.Matching.CombinedMargin == 0 {
		cfg.Matching.CombinedMargin = 5
	}
	w := &cfg.Matching.Weights
	if w.Embedding == 0 && w.Hash == 0 && w.Text == 0 && w.Color == 0 && w.Visual == 0 && w.Shape == 0 {
		w.Embedding = 0.30
		w.Hash = 0.20
		w.Text = 0.20
		w.Color = 0.10
		w.Visual = 0.10
		w.Shape = 0.10
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RECLAIM_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("RECLAIM_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("RECLAIM_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("RECLAIM_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("RECLAIM_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("RECLAIM_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("RECLAIM_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("RECLAIM_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("RECLAIM_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("RECLAIM_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("RECLAIM_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("RECLAIM_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("RECLAIM_MODELS_DIR"); v != "" {
		cfg.Features.ModelsDir = v
	}
	if v := os.Getenv("RECLAIM_WORKER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Features.WorkerCount = n
		}
	}
	if v := os.Getenv("RECLAIM_MIN_SCORE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Matching.MinScore = n
		}
	}
}
