package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      string
	JWTSecret string

	// Dropbox
	DropboxAppKey       string
	DropboxAppSecret    string
	DropboxRefreshToken string
	DropboxFolders      []string

	// Google Drive
	GDriveCredentialsFile string
	GDriveFolderIDs       []string

	// S3 source
	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string
	BucketPrefix string

	// Insight services
	GeminiAPIKey    string
	GenModel        string
	VisionModel     string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	TranscribeModel string

	// Notion sink
	NotionToken      string
	NotionDatabaseID string

	// Optional audit journal
	DatabaseURL string

	// Pipeline tuning
	TmpDir          string
	MaxFileSizeMB   int64
	Workers         int
	FileParallelism int
	ScanEveryMin    int
	DailyCallBudget int
	RequestTimeout  time.Duration

	// Dedup guard
	DedupRetention time.Duration
	DedupCapacity  int

	// Validation gate thresholds. These are tuning knobs, not structural
	// requirements, so they stay configurable.
	MinTextChars       int
	MinSummaryChars    int
	RepetitionRatio    float64
	RepetitionMaxWords int

	// Insight prompt budget
	MaxPromptTokens int
}

// LoadConfig loads the environment variables and returns config.
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		Port:      getEnv("PORT", "8080"),
		JWTSecret: getEnv("JWT_SECRET", ""),

		DropboxAppKey:       getEnv("DROPBOX_APP_KEY", ""),
		DropboxAppSecret:    getEnv("DROPBOX_APP_SECRET", ""),
		DropboxRefreshToken: getEnv("DROPBOX_REFRESH_TOKEN", ""),
		DropboxFolders:      getEnvList("DROPBOX_FOLDERS", "/inbox"),

		GDriveCredentialsFile: getEnv("GDRIVE_CREDENTIALS_FILE", ""),
		GDriveFolderIDs:       getEnvList("GDRIVE_FOLDER_IDS", ""),

		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("BUCKET_NAME", ""),
		BucketPrefix: getEnv("BUCKET_PREFIX", "inbox/"),

		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GenModel:        getEnv("GEN_MODEL", "gemini-1.5-flash"),
		VisionModel:     getEnv("VISION_MODEL", "gemini-1.5-flash"),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		TranscribeModel: getEnv("TRANSCRIBE_MODEL", "whisper-1"),

		NotionToken:      getEnv("NOTION_TOKEN", ""),
		NotionDatabaseID: getEnv("NOTION_DATABASE_ID", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		TmpDir:          getEnv("TMP_DIR", os.TempDir()),
		MaxFileSizeMB:   int64(getEnvInt("MAX_FILE_SIZE_MB", 50)),
		Workers:         getEnvInt("PIPELINE_WORKERS", 2),
		FileParallelism: getEnvInt("FILE_PARALLELISM", 3),
		ScanEveryMin:    getEnvInt("SCAN_EVERY_MIN", 15),
		DailyCallBudget: getEnvInt("DAILY_CALL_BUDGET", 200),
		RequestTimeout:  time.Duration(getEnvInt("REQUEST_TIMEOUT_SEC", 60)) * time.Second,

		DedupRetention: time.Duration(getEnvInt("DEDUP_RETENTION_SEC", 120)) * time.Second,
		DedupCapacity:  getEnvInt("DEDUP_CAPACITY", 100),

		MinTextChars:       getEnvInt("VALIDATE_MIN_TEXT_CHARS", 50),
		MinSummaryChars:    getEnvInt("VALIDATE_MIN_SUMMARY_CHARS", 20),
		RepetitionRatio:    getEnvFloat("VALIDATE_REPETITION_RATIO", 3.0),
		RepetitionMaxWords: getEnvInt("VALIDATE_REPETITION_MAX_WORDS", 200),

		MaxPromptTokens: getEnvInt("MAX_PROMPT_TOKENS", 6000),
	}

	if cfg.NotionToken == "" || cfg.NotionDatabaseID == "" {
		log.Fatal("NOTION_TOKEN and NOTION_DATABASE_ID must be set")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET not set")
	}

	return cfg
}

// DropboxConfigured reports whether the Dropbox adapter can be built.
func (c *Config) DropboxConfigured() bool {
	return c.DropboxAppKey != "" && c.DropboxAppSecret != "" && c.DropboxRefreshToken != ""
}

// GDriveConfigured reports whether the Drive adapter can be built.
func (c *Config) GDriveConfigured() bool {
	return c.GDriveCredentialsFile != "" && len(c.GDriveFolderIDs) > 0
}

// S3Configured reports whether the S3 source adapter can be built.
func (c *Config) S3Configured() bool {
	return c.AwsAccessKey != "" && c.AwsSecretKey != "" && c.BucketName != ""
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("WARN: %s=%q not a float, using default %g", key, v, def)
		return def
	}
	return f
}

func getEnvList(key, fallback string) []string {
	raw := getEnv(key, fallback)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
