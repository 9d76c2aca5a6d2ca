package config

import (
	"log"
	"sync"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	App struct {
		Env       string `env:"APP_ENV" env-default:"development"`
		Port      int    `env:"APP_PORT" env-default:"8080"`
		SentryUrl string `env:"SENTRY_URL"`
	}
	Twitter struct {
		UserHandle    string `env:"TWITTER_USER_HANDLE"`
		UserID        string `env:"TWITTER_USER_ID"`
		LoginEmail    string `env:"TWITTER_LOGIN_EMAIL"`
		LoginHandle   string `env:"TWITTER_LOGIN_HANDLE"`
		LoginPassword string `env:"TWITTER_LOGIN_PASSWORD"`
		UserDataDir   string `env:"TWITTER_USER_DATA_DIR" env-default:"./browser_data"`
	}
	Mastodon struct {
		Enabled     bool   `env:"MASTODON_ENABLED" env-default:"false"`
		InstanceURL string `env:"MASTODON_INSTANCE_URL"`
		AccessToken string `env:"MASTODON_ACCESS_TOKEN"`
	}
	Bluesky struct {
		Enabled bool   `env:"BLUESKY_ENABLED" env-default:"false"`
		Host    string `env:"BLUESKY_HOST" env-default:"https://bsky.social"`
		Handle  string `env:"BLUESKY_USER_HANDLE"`
		Pass    string `env:"BLUESKY_USER_PASSWORD"`
	}
	Telegram struct {
		Enabled bool   `env:"TELEGRAM_ENABLED" env-default:"false"`
		Token   string `env:"TELEGRAM_TOKEN"`
		Channel string `env:"TELEGRAM_CHANNEL"`
	}
	Sync struct {
		IntervalMs     int    `env:"SYNC_INTERVAL" env-default:"900000"`
		AfterTimestamp int64  `env:"SYNC_AFTER_TIMESTAMP" env-default:"0"`
		DataDir        string `env:"PERSISTENT_DATA_PATH" env-default:"./data"`
	}
	Storage struct {
		Driver string `env:"STORAGE_DRIVER" env-default:"file"`
	}
	Postgres struct {
		Port    int    `env:"POSTGRES_PORT"`
		Host    string `env:"POSTGRES_HOST"`
		User    string `env:"POSTGRES_USER"`
		Pass    string `env:"POSTGRES_PASS"`
		Name    string `env:"POSTGRES_NAME"`
		SslMode string `env:"POSTGRES_SSL_MODE" env-default:"disable"`
	}
}

var (
	once sync.Once
	cfg  *Config
)

func New() (*Config, error) {
	once.Do(func() {
		cfg = &Config{}
		if err := cleanenv.ReadEnv(cfg); err != nil {
			help, _ := cleanenv.GetDescription(cfg, nil)
			log.Fatalf("Failed to read configuration: %v\n%v", err, help)
		}
	})
	return cfg, nil
}
