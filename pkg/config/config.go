package config

import "time"

// Messaging definition messaging_service YAML structure
type Messaging struct {
	Port       string           `mapstructure:"port"`
	MongoSQL   DatabaseConfig   `mapstructure:"mongo"`
	Redis      RedisConfig      `mapstructure:"redis"`
	MinIO      MinIOConfig      `mapstructure:"minio"`
	Firebase   FirebaseConfig   `mapstructure:"firebase"`
	Encryption EncryptionConfig `mapstructure:"encryption"`
	Realtime   RealtimeConfig   `mapstructure:"realtime"`
	Auth       AuthConfig       `mapstructure:"auth"`
}

// RedisConfig definition redis setting
type RedisConfig struct {
	// Addr is used when no sentinel is configured in .env
	Addr    string `mapstructure:"addr"`
	RedisDB int    `mapstructure:"redis_db"`
}

// DatabaseConfig definition db setting
type DatabaseConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Database      string `mapstructure:"database"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}

// MinIOConfig definition attachment bucket setting
type MinIOConfig struct {
	Endpoint      string        `mapstructure:"endpoint"`
	User          string        `mapstructure:"user"`
	Password      string        `mapstructure:"password"`
	Bucket        string        `mapstructure:"bucket"`
	UseSSL        bool          `mapstructure:"use_ssl"`
	PresignExpiry time.Duration `mapstructure:"presign_expiry"`
	RetryInterval int           `mapstructure:"retry_interval"`
	RetryCount    int           `mapstructure:"retry_count"`
}

// FirebaseConfig definition FCM push setting
type FirebaseConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	ProjectID       string `mapstructure:"project_id"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

// EncryptionConfig definition message envelope key material
type EncryptionConfig struct {
	Secret string `mapstructure:"secret"`
	Salt   string `mapstructure:"salt"`
}

// RealtimeConfig definition reconnect & typing setting
type RealtimeConfig struct {
	ReconnectBaseDelay   time.Duration `mapstructure:"reconnect_base_delay"`
	MaxReconnectAttempts int           `mapstructure:"max_reconnect_attempts"`
	TypingTTL            time.Duration `mapstructure:"typing_ttl"`
}

// AuthConfig definition JWT setting of the websocket gateway
type AuthConfig struct {
	JWTSecret  string        `mapstructure:"jwt_secret"`
	Issuer     string        `mapstructure:"issuer"`
	Expiration time.Duration `mapstructure:"expiration"`
}
