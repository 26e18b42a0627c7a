// Package config loads and validates the accounts service configuration.
//
// Values are resolved in three layers: built-in defaults, an optional YAML
// file named by ACCOUNTS_CONFIG_FILE, and finally environment variables.
//
// # Environment
//
// Credentials:
//
//	JWT_SECRET="..."              # required, at least 32 bytes
//	JWT_EXPIRES_IN="90d"          # Go duration or whole days
//	ACCOUNTS_BCRYPT_COST="12"
//	ACCOUNTS_MIN_PASSWORD_LENGTH="6"
//
// Server:
//
//	ACCOUNTS_HOST="0.0.0.0"
//	ACCOUNTS_PORT="8080"
//	ACCOUNTS_HEALTH_PORT="9090"
//	ACCOUNTS_PATH_PREFIX="/api/v1/users"
//	ACCOUNTS_ALLOWED_ORIGINS="https://app.example.com"
//	ACCOUNTS_TRUST_PROXY="false"
//
// Storage:
//
//	ACCOUNTS_STORAGE_TYPE="memory"   # memory, postgres, sqlite
//	ACCOUNTS_POSTGRES_URL="postgres://..."
//	ACCOUNTS_SQLITE_PATH="file:accounts.db?_foreign_keys=on"
//	ACCOUNTS_REDIS_URL="redis://localhost:6379"
//	ACCOUNTS_CACHE_ENABLED="true"
//
// Rate limiting, audit and bootstrap:
//
//	ACCOUNTS_RATE_LIMIT_REQUESTS="100"
//	ACCOUNTS_RATE_LIMIT_WINDOW="1h"
//	ACCOUNTS_AUDIT_ENABLED="true"
//	ACCOUNTS_ADMIN_EMAIL="admin@example.com"
//	ACCOUNTS_ADMIN_PASSWORD="..."
//
// Observability:
//
//	ACCOUNTS_LOG_LEVEL="info"
//	ACCOUNTS_OTEL_ENABLED="false"
//	ACCOUNTS_OTEL_ENDPOINT="localhost:4317"
//
// # Usage
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatalf("Failed to load configuration: %v", err)
//	}
package config
