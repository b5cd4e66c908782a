package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Database DatabaseConfig
	Paths    PathsConfig
	API      APIConfig
	Worker   WorkerConfig
	Faces    FacesConfig
	Cluster  ClusterConfig
	Tags     TagsConfig
	OCR      OCRConfig
	Models   ModelsConfig
	Logging  LoggingConfig
}

type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

type PathsConfig struct {
	Media  string // preview images root
	Models string // downloaded model blobs
}

type APIConfig struct {
	Host string
	Port int
}

type WorkerConfig struct {
	Threads       int // intra-op ONNX threads, 0 = auto
	DelayMs       int // inter-photo sleep
	BatchSize     int // reserved
	MaxCPUPercent int // reserved
	IdleOnly      bool
	AutoStart     bool
	ScanInterval  int // seconds, 0 disables the periodic scan
	MaxRetries    int
}

type FacesConfig struct {
	Enabled       bool
	MinConfidence float64
	MinSize       int
	MaxPerPhoto   int
}

type ClusterConfig struct {
	Threshold float64
	MinFaces  int  // reserved
	AutoMerge bool // reserved
}

type TagsConfig struct {
	Enabled       bool
	MinConfidence float64
	MaxPerPhoto   int
}

type OCRConfig struct {
	Enabled       bool
	Mode          string // auto | full | off
	MinConfidence float64
	UpdateTakenAt bool
}

type ModelsConfig struct {
	TTLSeconds        int
	Preload           bool
	Repo              string // override for the default model repository
	IdleUnloadMinutes int
}

type LoggingConfig struct {
	Level     string
	EachPhoto bool
}

// envInt reads an environment variable and parses it as a non-negative integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n
	}
	return defaultVal
}

func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 {
		return f
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	switch strings.ToLower(s) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	return &Config{
		Database: DatabaseConfig{
			URL:          envString("DATABASE_URL", "postgres://imgable:imgable@db:5432/imgable"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Paths: PathsConfig{
			Media:  envString("MEDIA_PATH", "/media"),
			Models: envString("MODELS_PATH", "/models"),
		},
		API: APIConfig{
			Host: envString("API_HOST", "0.0.0.0"),
			Port: envInt("API_PORT", 8004),
		},
		Worker: WorkerConfig{
			Threads:       envInt("AI_THREADS", 0),
			DelayMs:       envInt("AI_DELAY_MS", 100),
			BatchSize:     envInt("AI_BATCH_SIZE", 1),
			MaxCPUPercent: envInt("AI_MAX_CPU_PERCENT", 0),
			IdleOnly:      envBool("AI_IDLE_ONLY", false),
			AutoStart:     envBool("AI_AUTO_START", true),
			ScanInterval:  envInt("AI_SCAN_INTERVAL", 3600),
			MaxRetries:    envInt("AI_MAX_RETRIES", 3),
		},
		Faces: FacesConfig{
			Enabled:       envBool("AI_FACES_ENABLED", true),
			MinConfidence: envFloat("AI_FACES_MIN_CONFIDENCE", 0.5),
			MinSize:       envInt("AI_FACES_MIN_SIZE", 30),
			MaxPerPhoto:   envInt("AI_FACES_MAX_PER_PHOTO", 50),
		},
		Cluster: ClusterConfig{
			Threshold: envFloat("AI_CLUSTER_THRESHOLD", 0.6),
			MinFaces:  envInt("AI_CLUSTER_MIN_FACES", 3),
			AutoMerge: envBool("AI_CLUSTER_AUTO_MERGE", true),
		},
		Tags: TagsConfig{
			Enabled:       envBool("AI_TAGS_ENABLED", true),
			MinConfidence: envFloat("AI_TAGS_MIN_CONFIDENCE", 0.15),
			MaxPerPhoto:   envInt("AI_TAGS_MAX_PER_PHOTO", 10),
		},
		OCR: OCRConfig{
			Enabled:       envBool("AI_OCR_ENABLED", true),
			Mode:          envString("AI_OCR_MODE", "auto"),
			MinConfidence: envFloat("AI_OCR_MIN_CONFIDENCE", 0.7),
			UpdateTakenAt: envBool("AI_OCR_UPDATE_TAKEN_AT", true),
		},
		Models: ModelsConfig{
			TTLSeconds:        envInt("AI_MODEL_TTL", 1800),
			Preload:           envBool("AI_MODEL_PRELOAD", true),
			Repo:              os.Getenv("AI_MODEL_REPO"),
			IdleUnloadMinutes: envInt("AI_IDLE_UNLOAD_MINUTES", 30),
		},
		Logging: LoggingConfig{
			Level:     envString("AI_LOG_LEVEL", "info"),
			EachPhoto: envBool("AI_LOG_EACH_PHOTO", false),
		},
	}
}
