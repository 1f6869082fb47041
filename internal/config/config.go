package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Spotify   SpotifyConfig
	Tree      TreeConfig
	TTL       TTLConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port        string
	Env         string
	CORSOrigins string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	TokenURL     string
}

type TreeConfig struct {
	Depth int
}

// TTLConfig bounds how long stored records live. Job TTL counts from
// the last status write, tree TTL from build completion, candidate TTL
// from the catalog crawl.
type TTLConfig struct {
	Job        time.Duration
	Tree       time.Duration
	Candidates time.Duration
}

// JWTConfig enables the bearer-token gate on /api when Secret is set.
type JWTConfig struct {
	Secret string
}

type RateLimitConfig struct {
	SearchPerHour int
	VotePerMin    int
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.cors_origins", "http://localhost:3000")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("spotify.client_id", "")
	viper.SetDefault("spotify.client_secret", "")
	viper.SetDefault("spotify.base_url", "https://api.spotify.com/v1")
	viper.SetDefault("spotify.token_url", "https://accounts.spotify.com/api/token")
	viper.SetDefault("tree.depth", 2)
	viper.SetDefault("ttl.job_seconds", 3600)
	viper.SetDefault("ttl.tree_seconds", 3600)
	viper.SetDefault("ttl.candidates_hours", 336) // two weeks
	viper.SetDefault("jwt.secret", "")
	viper.SetDefault("ratelimit.search_per_hour", 30)
	viper.SetDefault("ratelimit.vote_per_min", 120)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:        viper.GetString("server.port"),
			Env:         viper.GetString("server.env"),
			CORSOrigins: viper.GetString("server.cors_origins"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Spotify: SpotifyConfig{
			ClientID:     viper.GetString("spotify.client_id"),
			ClientSecret: viper.GetString("spotify.client_secret"),
			BaseURL:      viper.GetString("spotify.base_url"),
			TokenURL:     viper.GetString("spotify.token_url"),
		},
		Tree: TreeConfig{
			Depth: viper.GetInt("tree.depth"),
		},
		TTL: TTLConfig{
			Job:        time.Duration(viper.GetInt("ttl.job_seconds")) * time.Second,
			Tree:       time.Duration(viper.GetInt("ttl.tree_seconds")) * time.Second,
			Candidates: time.Duration(viper.GetInt("ttl.candidates_hours")) * time.Hour,
		},
		JWT: JWTConfig{
			Secret: viper.GetString("jwt.secret"),
		},
		RateLimit: RateLimitConfig{
			SearchPerHour: viper.GetInt("ratelimit.search_per_hour"),
			VotePerMin:    viper.GetInt("ratelimit.vote_per_min"),
		},
	}

	return cfg, nil
}
