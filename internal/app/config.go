package app

import (
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/opencampus/lms-backend/internal/logger"
	"github.com/opencampus/lms-backend/internal/utils"
)

type Config struct {
	Port            string
	JWTSecretKey    string
	AccessTokenTTL  time.Duration
	AllowedOrigins  []string
	MediaServiceURL string
	MediaTimeout    time.Duration
}

func LoadConfig(log *logger.Logger) Config {
	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file loaded", "error", err)
	}
	accessTokenTTLSeconds := utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)
	mediaTimeoutSeconds := utils.GetEnvAsInt("MEDIA_SERVICE_TIMEOUT", 5, log)
	origins := strings.Split(utils.GetEnv("ALLOWED_ORIGINS", "http://localhost:3000", log), ",")
	return Config{
		Port:            utils.GetEnv("PORT", "8080", log),
		JWTSecretKey:    utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log),
		AccessTokenTTL:  time.Duration(accessTokenTTLSeconds) * time.Second,
		AllowedOrigins:  origins,
		MediaServiceURL: utils.GetEnv("MEDIA_SERVICE_URL", "http://localhost:9090", log),
		MediaTimeout:    time.Duration(mediaTimeoutSeconds) * time.Second,
	}
}
