package config

import (
	"os"
	"strconv"
	"time"
)

type CanteenConfig struct {
	MealCost         int64
	MealDescription  string
	SignerScheme     string
	SignerSecret     string
	ReconcileTimeout time.Duration
	SeedAccounts     bool
}

func LoadCanteenConfig() *CanteenConfig {
	return &CanteenConfig{
		MealCost:         getEnvAsInt64("CANTEEN_MEAL_COST", 1),
		MealDescription:  getEnv("CANTEEN_MEAL_DESCRIPTION", "Meal served"),
		SignerScheme:     getEnv("CANTEEN_SIGNER_SCHEME", "legacy"),
		SignerSecret:     getEnv("CANTEEN_SIGNER_SECRET", ""),
		ReconcileTimeout: getEnvAsDuration("CANTEEN_RECONCILE_TIMEOUT", 15*time.Second),
		SeedAccounts:     getEnvAsBool("CANTEEN_SEED_ACCOUNTS", true),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.ParseInt(val, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if boolVal, err := strconv.ParseBool(val); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}
