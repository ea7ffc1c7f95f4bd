package config

import "time"

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"ownable-api"`
	Port                          int      `env:"PORT" env-default:"3000"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int      `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	ReadHeaderTimeoutSeconds      int      `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" env-default:"10"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST,PUT,DELETE"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// Database driver
	DatabaseDriver string `env:"DB_DRIVER" env-default:"postgres"`
	// Database host
	DatabaseHost string `env:"DB_HOST" env-default:""`
	// Database port
	DatabasePort string `env:"DB_PORT" env-default:"5432"`
	// Database user
	DatabaseUserName string `env:"DB_USER_NAME" env-default:""`
	// Database user password
	DatabasePassword string `env:"DB_PASSWORD" env-default:""`
	// Database name
	DatabaseName string `env:"DB_NAME" env-default:"ownable"`
	// Database SSL Mode
	DatabaseSSLMode string `env:"DB_SSL_MODE" env-default:"disable"`
	// Reconnect Retry Count
	DatabaseReconnectRetryCount int `env:"DB_RECONNECT_RETRY_COUNT" env-default:"3"`
	// Max Open Conns
	DatabaseMaxOpenConns int `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	// Max Idle Conns
	DatabaseMaxIdleConns int `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	// Conn Max Lifetime
	DatabaseConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	// Migration Folder Path
	DatabaseMigrationFolderPath string `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	// Database Migration Version
	DatabaseMigrationVersion int `env:"DB_MIGRATION_VERSION" env-default:"0"`
	// Database Migration Force
	DatabaseMigrationForce int `env:"DB_MIGRATION_FORCE" env-default:"0"`

	// Redis host, empty disables the registry snapshot cache
	RedisHost string `env:"REDIS_HOST" env-default:""`
	// Redis port
	RedisPort int `env:"REDIS_PORT" env-default:"6379"`
	// Redis password
	RedisPassword string `env:"REDIS_PASSWORD" env-default:""`
	// Redis database number
	RedisDB int `env:"REDIS_DB" env-default:"0"`
	// Registry snapshot cache TTL
	RegistryCacheTTL time.Duration `env:"REGISTRY_CACHE_TTL" env-default:"30s"`

	// Kafka brokers (comma-separated), empty disables event publishing
	KafkaBrokers string `env:"KAFKA_BROKERS" env-default:""`
	// Kafka topic for ownership lifecycle events
	KafkaOwnershipTopic string `env:"KAFKA_OWNERSHIP_TOPIC" env-default:"ownership-events"`

	// Statically configured owner type identifiers (comma-separated)
	OwnerModels []string `env:"OWNABLE_OWNER_MODELS" env-default:""`
	// Statically configured ownable type identifiers (comma-separated)
	OwnableModels []string `env:"OWNABLE_OWNABLE_MODELS" env-default:""`
	// Route prefix for the HTTP surface
	RoutePrefix string `env:"OWNABLE_ROUTE_PREFIX" env-default:"api/ownable"`
	// Enable/disable the response enrichment walk
	AttachmentEnabled bool `env:"OWNABLE_ATTACHMENT_ENABLED" env-default:"true"`
	// Key injected into enriched entity nodes
	AttachmentKey string `env:"OWNABLE_ATTACHMENT_KEY" env-default:"ownership"`

	// Tracing settings
	// Enable OTLP tracing export (set to true to send traces to collector)
	OTLPEnabled bool `env:"OTLP_ENABLED" env-default:"false"`
	// OTLP collector endpoint
	OTLPEndpoint string `env:"OTLP_ENDPOINT" env-default:"localhost:4317"`
	// Disable TLS for OTLP (for local development)
	OTLPInsecure bool `env:"OTLP_INSECURE" env-default:"true"`
}
