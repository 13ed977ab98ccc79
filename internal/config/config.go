package config

import "github.com/spf13/viper"

type Config struct {
	Port              string  `mapstructure:"PORT"`
	DB_DSN            string  `mapstructure:"DB_DSN"`
	NatsURL           string  `mapstructure:"NATS_URL"`
	LogLevel          string  `mapstructure:"LOG_LEVEL"`
	DataDir           string  `mapstructure:"DATA_DIR"`
	RiskFreeRate      float64 `mapstructure:"RISK_FREE_RATE"`
	MonteCarloWorkers int     `mapstructure:"MONTE_CARLO_WORKERS"` // 0 = 按 CPU 数
	ForestSeed        int64   `mapstructure:"FOREST_SEED"`         // 0 = 不固定种子
	PublishResults    bool    `mapstructure:"PUBLISH_RESULTS"`
	MaxSimulations    int     `mapstructure:"MAX_SIMULATIONS"`
}

func LoadConfig() (config Config, err error) {
	return LoadConfigFrom(".")
}

// LoadConfigFrom reads app.env from dir; environment variables win over the file.
func LoadConfigFrom(dir string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(dir)
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AutomaticEnv() // 自动读取环境变量

	v.SetDefault("PORT", "8080")
	v.SetDefault("DB_DSN", "")
	v.SetDefault("NATS_URL", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DATA_DIR", "./data")
	v.SetDefault("RISK_FREE_RATE", 0.02)
	v.SetDefault("MONTE_CARLO_WORKERS", 0)
	v.SetDefault("FOREST_SEED", 0)
	v.SetDefault("PUBLISH_RESULTS", false)
	v.SetDefault("MAX_SIMULATIONS", 1000)

	err = v.ReadInConfig()
	// If config file not found, we can still use env vars
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		err = nil
	}

	if err != nil {
		return Config{}, err
	}
	err = v.Unmarshal(&config)
	return
}
