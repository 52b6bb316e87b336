package model

// ----------------------------------------------------
// ================ Config ================

// LogConfig controls the global zerolog logger
type LogConfig struct {
	Level      string `envconfig:"LOG_LEVEL" default:"info"`
	Format     string `envconfig:"LOG_FORMAT" default:"json"`
	Output     string `envconfig:"LOG_OUTPUT" default:"stdout"`
	FilePath   string `envconfig:"LOG_FILE_PATH" default:"logs/assistant.log"`
	TimeFormat string `envconfig:"LOG_TIME_FORMAT" default:"rfc3339"`
}

// NLUConfig controls the local extraction and classification pipeline
type NLUConfig struct {
	SupportedEntities       []string `envconfig:"SUPPORTED_ENTITIES"`
	EnableIntentRecognition bool     `envconfig:"ENABLE_INTENT_RECOGNITION" default:"true"`
	EnableEntityExtraction  bool     `envconfig:"ENABLE_ENTITY_EXTRACTION" default:"true"`
	ConfigFile              string   `envconfig:"ASSISTANT_CONFIG_FILE"`
}

// ConversationConfig controls the dialogue context store
type ConversationConfig struct {
	MaxContextTurns           int `envconfig:"MAX_CONTEXT_TURNS" default:"10"`
	SessionIdleTimeoutMinutes int `envconfig:"SESSION_IDLE_TIMEOUT_MINUTES" default:"30"`
	SweepIntervalSeconds      int `envconfig:"SWEEP_INTERVAL_SECONDS" default:"60"`
}

// RemoteConfig selects and configures the remote generation backend
type RemoteConfig struct {
	Provider     string  `envconfig:"REMOTE_PROVIDER" default:"http"`
	Endpoint     string  `envconfig:"REMOTE_ENDPOINT" default:"http://localhost:3100/api/ai/chat"`
	TimeoutMs    int     `envconfig:"REMOTE_TIMEOUT_MS" default:"5000"`
	Model        string  `envconfig:"REMOTE_MODEL"`
	APIKey       string  `envconfig:"REMOTE_API_KEY"`
	BaseURL      string  `envconfig:"REMOTE_BASE_URL"`
	Temperature  float32 `envconfig:"REMOTE_TEMPERATURE" default:"0.3"`
	SystemPrompt string  `envconfig:"REMOTE_SYSTEM_PROMPT"`
}

// TurnLogConfig selects the durable turn log backend
type TurnLogConfig struct {
	Backend    string `envconfig:"TURN_LOG_BACKEND" default:"none"`
	RedisURL   string `envconfig:"REDIS_URL"`
	SQLitePath string `envconfig:"SQLITE_PATH" default:"data/turns.db"`
	Dir        string `envconfig:"TURN_LOG_DIR" default:"data/turns"`
}

// ServerConfig controls the HTTP listener
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"3200"`
}
