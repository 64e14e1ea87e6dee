package core

import (
	"fmt"
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	RedisConfig struct {
		Addr     string
		Password string
		DB       int
	}

	SpotifyConfig struct {
		ClientID        string
		ClientSecret    string
		RedirectURI     string
		PlaylistID      string
		APIBaseURL      string
		AccountsBaseURL string
	}

	RateLimitConfig struct {
		PerSecond float64
		Burst     int
	}

	Config struct {
		Debug           bool
		TestMode        bool
		Env             string
		Build           string
		AppName         string
		SecretKey       string
		FrontendBaseURL string
		WorkDir         string
		RollbarToken    string
		SendgridApiKey  string

		// CompensateOnRemoteFailure reverts the point debit and the suggestion status when the
		// playlist rejects an approved track.
		CompensateOnRemoteFailure bool

		Server    ServerConfig
		Database  DatabaseConfig
		Redis     RedisConfig
		Spotify   SpotifyConfig
		RateLimit RateLimitConfig

		defaultFromEmail string
		contactEmail     string
	}
)

func (c *Config) DefaultFromEmail() mail.Address {
	return c.parseAddress(c.defaultFromEmail)
}

// ContactEmail is the mailbox receiving contact form messages.
func (c *Config) ContactEmail() mail.Address {
	return c.parseAddress(c.contactEmail)
}

func (c *Config) parseAddress(addr string) mail.Address {
	if a, err := mail.ParseAddress(addr); err == nil {
		return *a
	}
	return mail.Address{Name: c.AppName, Address: addr}
}

func (d DatabaseConfig) Address() string {
	return fmt.Sprintf("%s:%d", d.Host, d.Port)
}

func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", true)
	conf.SetDefault("build", "dev")
	conf.SetDefault("appName", "Ritmatiza")
	conf.SetDefault("secretKey", "b1x$w9=kq0)t3m!u^7e(p2zr%c8h&d4j+5a@n6f*s-vgyoli")
	conf.SetDefault("frontendBaseURL", "http://localhost:5173")
	conf.SetDefault("defaultFromEmail", "Ritmatiza <noreply@localhost>")
	conf.SetDefault("contactEmail", "contacto@localhost")
	conf.SetDefault("rollbarToken", "")
	conf.SetDefault("sendgridApiKey", "")
	conf.SetDefault("music.compensate", false)

	conf.SetDefault("server.host", ":8000")
	conf.SetDefault("server.debugHost", ":4000")
	conf.SetDefault("server.shutdownTimeout", 5*time.Second)
	conf.SetDefault("server.jwtExpirationDelta", 24*time.Hour)
	conf.SetDefault("server.jwtRefreshExpirationDelta", 7*24*time.Hour)

	conf.SetDefault("database.engine", "postgres")
	conf.SetDefault("database.host", "localhost")
	conf.SetDefault("database.port", 5432)
	conf.SetDefault("database.name", "ritmatiza")
	conf.SetDefault("database.user", "ritmatiza")
	conf.SetDefault("database.password", "ritmatiza")
	conf.SetDefault("database.adminUser", "postgres")
	conf.SetDefault("database.adminPassword", "postgres")
	conf.SetDefault("database.disableTLS", true)

	conf.SetDefault("redis.addr", "") // empty: in-process stores
	conf.SetDefault("redis.password", "")
	conf.SetDefault("redis.db", 0)

	conf.SetDefault("spotify.clientID", "")
	conf.SetDefault("spotify.clientSecret", "")
	conf.SetDefault("spotify.redirectURI", "http://localhost:8000/v1/spotify/callback")
	conf.SetDefault("spotify.playlistID", "")
	conf.SetDefault("spotify.apiBaseURL", "https://api.spotify.com/v1")
	conf.SetDefault("spotify.accountsBaseURL", "https://accounts.spotify.com")

	conf.SetDefault("rateLimit.perSecond", 5.0)
	conf.SetDefault("rateLimit.burst", 10)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		conf.SetDefault("testMode", true)
	}
	conf.SetEnvPrefix(env)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	workDir := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	return &Config{
		Debug:                     conf.GetBool("debug"),
		TestMode:                  conf.GetBool("testMode"),
		Env:                       env,
		Build:                     conf.GetString("build"),
		AppName:                   conf.GetString("appName"),
		SecretKey:                 conf.GetString("secretKey"),
		FrontendBaseURL:           conf.GetString("frontendBaseURL"),
		WorkDir:                   workDir,
		RollbarToken:              conf.GetString("rollbarToken"),
		SendgridApiKey:            conf.GetString("sendgridApiKey"),
		CompensateOnRemoteFailure: conf.GetBool("music.compensate"),
		Server: ServerConfig{
			Host:                      conf.GetString("server.host"),
			DebugHost:                 conf.GetString("server.debugHost"),
			ShutdownTimeout:           conf.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        conf.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: conf.GetDuration("server.jwtRefreshExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        conf.GetString("database.engine"),
			Host:          conf.GetString("database.host"),
			Port:          conf.GetInt("database.port"),
			Name:          conf.GetString("database.name"),
			User:          conf.GetString("database.user"),
			Password:      conf.GetString("database.password"),
			AdminUser:     conf.GetString("database.adminUser"),
			AdminPassword: conf.GetString("database.adminPassword"),
			DisableTLS:    conf.GetBool("database.disableTLS"),
		},
		Redis: RedisConfig{
			Addr:     conf.GetString("redis.addr"),
			Password: conf.GetString("redis.password"),
			DB:       conf.GetInt("redis.db"),
		},
		Spotify: SpotifyConfig{
			ClientID:        conf.GetString("spotify.clientID"),
			ClientSecret:    conf.GetString("spotify.clientSecret"),
			RedirectURI:     conf.GetString("spotify.redirectURI"),
			PlaylistID:      conf.GetString("spotify.playlistID"),
			APIBaseURL:      conf.GetString("spotify.apiBaseURL"),
			AccountsBaseURL: conf.GetString("spotify.accountsBaseURL"),
		},
		RateLimit: RateLimitConfig{
			PerSecond: conf.GetFloat64("rateLimit.perSecond"),
			Burst:     conf.GetInt("rateLimit.burst"),
		},
		defaultFromEmail: conf.GetString("defaultFromEmail"),
		contactEmail:     conf.GetString("contactEmail"),
	}
}

// NewTestConfig returns a Config suitable for tests: no .env lookup, no external services.
func NewTestConfig() *Config {
	return &Config{
		Debug:     false,
		TestMode:  true,
		Env:       "TEST",
		Build:     "test",
		AppName:   "Ritmatiza",
		SecretKey: "test-secret",
		Server: ServerConfig{
			Host:                      ":0",
			ShutdownTimeout:           time.Second,
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 24 * time.Hour,
		},
		Spotify: SpotifyConfig{
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			RedirectURI:  "http://localhost:8000/v1/spotify/callback",
			PlaylistID:   "playlist-1",
		},
		RateLimit:        RateLimitConfig{PerSecond: 1000, Burst: 1000},
		defaultFromEmail: "Ritmatiza <noreply@test.test>",
		contactEmail:     "contacto@test.test",
	}
}
