package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds all environment-driven settings for the server.
type Config struct {
	Port        string
	MongoURI    string
	MongoDB     string
	JWTSecret   string
	TokenExpiry time.Duration
	RedisAddr   string
	AWSRegion   string
	S3Bucket    string
	UploadDir   string
	BaseURL     string
	CORSOrigin  string
}

// LoadConfig reads the .env file (if present) and builds the Config.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		logrus.Warn("No .env file found, relying on environment variables")
	}

	expiryHours := 72
	if v := os.Getenv("TOKEN_EXPIRY_HOURS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			expiryHours = parsed
		}
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:     getEnv("MONGO_DB", "momentum"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		TokenExpiry: time.Duration(expiryHours) * time.Hour,
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),
		AWSRegion:   getEnv("AWS_REGION", "ap-northeast-2"),
		S3Bucket:    os.Getenv("S3_BUCKET"),
		UploadDir:   getEnv("UPLOAD_DIR", "./uploads"),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
		CORSOrigin:  getEnv("CORS_ORIGIN", "http://localhost:3000"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
