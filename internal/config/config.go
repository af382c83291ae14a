package config

import (
	"fmt"
	"log"
	"sync"

	"docspace/entity"

	"github.com/ilyakaznacheev/cleanenv"
)

type Listen struct {
	BindIp string `yaml:"bind_ip" env:"LISTEN_BIND_IP" env-default:"0.0.0.0"`
	Port   string `yaml:"port" env:"LISTEN_PORT" env-default:"8080"`
}

type Storage struct {
	Driver          string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"none" env-description:"none, mongo, mysql or redis"`
	SaveIntervalSec int    `yaml:"save_interval_sec" env-default:"30"`
}

type Mongo struct {
	Enabled  bool   `yaml:"enabled" env-default:"false"`
	Host     string `yaml:"host" env:"MONGO_HOST" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env-default:"27017"`
	User     string `yaml:"user" env-default:"admin"`
	Password string `yaml:"password" env:"MONGO_PASSWORD" env-default:"pass"`
	Database string `yaml:"database" env-default:"docspace"`
}

type MySql struct {
	Enabled  bool   `yaml:"enabled" env-default:"false"`
	Host     string `yaml:"host" env:"MYSQL_HOST" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env-default:"3306"`
	User     string `yaml:"user" env-default:"root"`
	Password string `yaml:"password" env:"MYSQL_PASSWORD" env-default:""`
	Database string `yaml:"database" env-default:"docspace"`
}

type Redis struct {
	Enabled  bool   `yaml:"enabled" env-default:"false"`
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"127.0.0.1:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD" env-default:""`
	DB       int    `yaml:"db" env-default:"0"`
}

type Invite struct {
	CodeLength       int `yaml:"code_length" env-default:"8"`
	GenerateAttempts int `yaml:"generate_attempts" env-default:"10"`
}

type Analytics struct {
	DefaultDays      int `yaml:"default_days" env-default:"7"`
	RetentionDays    int `yaml:"retention_days" env-default:"90"`
	PurgeIntervalMin int `yaml:"purge_interval_min" env-default:"60"`
}

type Telegram struct {
	Enabled  bool    `yaml:"enabled" env-default:"false"`
	ApiKey   string  `yaml:"api_key" env:"TELEGRAM_API_KEY" env-default:""`
	AdminIds []int64 `yaml:"admin_ids" env-default:""`
	LogLevel string  `yaml:"log_level" env-default:"error" env-description:"debug, info, warn or error"`
}

type Metrics struct {
	Enabled bool   `yaml:"enabled" env-default:"true"`
	Path    string `yaml:"path" env-default:"/metrics"`
}

type Config struct {
	Env       string         `yaml:"env" env:"ENV" env-default:"local"`
	Listen    Listen         `yaml:"listen"`
	Storage   Storage        `yaml:"storage"`
	Mongo     Mongo          `yaml:"mongo"`
	MySql     MySql          `yaml:"mysql"`
	Redis     Redis          `yaml:"redis"`
	Invite    Invite         `yaml:"invite"`
	Analytics Analytics      `yaml:"analytics"`
	Telegram  Telegram       `yaml:"telegram"`
	Metrics   Metrics        `yaml:"metrics"`
	Users     []*entity.User `yaml:"users"`
}

var instance *Config
var once sync.Once

func MustLoad(path string) *Config {
	var err error
	once.Do(func() {
		instance = &Config{}
		if err = cleanenv.ReadConfig(path, instance); err != nil {
			desc, _ := cleanenv.GetDescription(instance, nil)
			err = fmt.Errorf("config: %s; %s", err, desc)
			instance = nil
			log.Fatal(err)
		}
	})
	return instance
}

// Load reads the config without caching it
func Load(path string) (*Config, error) {
	conf := &Config{}
	if err := cleanenv.ReadConfig(path, conf); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return conf, nil
}
