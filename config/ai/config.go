package config

import (
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Port           int           `env:"PORT" env-default:"8080"`
	GRPCPort       int           `env:"GRPC_PORT" env-default:"9090"`
	LogLevel       string        `env:"LOG_LEVEL" env-default:"debug"`
	LogJSON        bool          `env:"LOG_JSON" env-default:"false"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" env-default:"5m"`
	AllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" env-default:"http://localhost:8080,https://ai-signposting.nw.r.appspot.com,http://localhost:3000"`

	Auth     AuthConfig
	Twilio   TwilioConfig `env-prefix:"TWILIO_"`
	Storage  StorageConfig
	VertexAI VertexAIConfig `env-prefix:"VERTEXAI_"`
	OpenAI   OpenAIConfig   `env-prefix:"OPENAI_"`
	LLM      LLMConfig
	Database DatabaseConfig
}

type AuthConfig struct {
	JWTSecret  string `env:"AUTH_JWT_SECRET"`
	APIKeyHash string `env:"AUTH_API_KEY_HASH"`
}

// TwilioConfig holds the account credentials used as basic auth when
// downloading message media.
type TwilioConfig struct {
	AccountSID string `env:"ACCOUNT_SID"`
	AuthToken  string `env:"AUTH_TOKEN"`
}

type StorageConfig struct {
	BucketName    string `env:"BUCKET_NAME"`
	MaxMediaBytes int64  `env:"MAX_MEDIA_BYTES" env-default:"26214400"`
}

type VertexAIConfig struct {
	ProjectID string `env:"PROJECT_ID"`
	Location  string `env:"PROJECT_LOCATION" env-default:"europe-west2"`
	Model     string `env:"MODEL" env-default:"gemini-1.5-flash-001"`
}

type OpenAIConfig struct {
	APIKey         string `env:"API_KEY"`
	Model          string `env:"MODEL" env-default:"gpt-4o-mini"`
	QAInstructions string `env:"QA_INSTRUCTIONS" env-default:"You are a helpful assistant answering questions about Enham Trust personal assistant services. Answer briefly and clearly."`
}

// LLMConfig selects which backend serves each capability.
type LLMConfig struct {
	SignpostingBackend string `env:"SIGNPOSTING_LLM_BACKEND" env-default:"vertexai"`
	QABackend          string `env:"QA_LLM_BACKEND" env-default:"openai"`
}

type DatabaseConfig struct {
	Driver       string `env:"DB_DRIVER" env-default:"mongo"`
	Name         string `env:"DB_NAME" env-default:"controlRoomDB_dev"`
	MongoURI     string `env:"MONGO_URI" env-default:"mongodb://localhost:27017"`
	ProfileField string `env:"CONTACT_PROFILE_FIELD" env-default:"EnhamPA_profile"`

	User     string `env:"DB_USER"`
	Password string `env:"DB_PASSWORD"`
	Host     string `env:"DB_HOST" env-default:"localhost"`
	Port     int    `env:"DB_PORT" env-default:"5432"`
	SSLMode  string `env:"DB_SSLMODE" env-default:"disable"`
	Schema   string `env:"DB_SCHEMA" env-default:"public"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic("failed to read environment variables: " + err.Error())
	}

	return cfg
}
