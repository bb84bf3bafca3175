package testutil

import (
	"os"
)

const (
	// Test credential environment variables
	TestTCGPlayerAPIKey = "TEST_TCGPLAYER_API_KEY"
	TestDatabaseURL     = "TEST_DATABASE_URL"
	TestRedisAddr       = "TEST_REDIS_ADDR"

	// Default test values when environment variables are not set
	DefaultTestKey = "test-key"
)

// GetTestToken returns a test token from environment variable or default
func GetTestToken(envVar, defaultValue string) string {
	if token := os.Getenv(envVar); token != "" {
		return token
	}
	return defaultValue
}

// GetTestTCGPlayerAPIKey returns the bearer token used against fake TCGPlayer servers
func GetTestTCGPlayerAPIKey() string {
	return GetTestToken(TestTCGPlayerAPIKey, DefaultTestKey)
}

// GetTestDatabaseURL returns a live Postgres DSN, or "" when integration
// tests should be skipped.
func GetTestDatabaseURL() string {
	return os.Getenv(TestDatabaseURL)
}

// GetTestRedisAddr returns a live Redis address, or "" when integration
// tests should be skipped.
func GetTestRedisAddr() string {
	return os.Getenv(TestRedisAddr)
}
