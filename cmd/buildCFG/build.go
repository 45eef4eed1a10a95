// Package buildCFG assembles typed runtime configuration from the loaded
// config file.
package buildCFG

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"

	"symposium/internal/mailer"
	"symposium/internal/pricing"
	"symposium/internal/service"
)

type ServerConfig struct {
	Port string
}

func BuildServerConfig(cfg *config.Config, log *zerolog.Logger) ServerConfig {
	port := cfg.GetString("server.port")
	if port == "" {
		port = "8080"
		log.Warn().Msg("server.port not set, defaulting to 8080")
	}
	return ServerConfig{Port: port}
}

func BuildDBConfig(cfg *config.Config, log *zerolog.Logger) (string, []string, *dbpg.Options, error) {
	masterDSN := cfg.GetString("db.master_dsn")
	if masterDSN == "" {
		return "", nil, nil, fmt.Errorf("db.master_dsn is required")
	}

	opts := &dbpg.Options{
		MaxOpenConns: cfg.GetInt("db.max_open_conns"),
		MaxIdleConns: cfg.GetInt("db.max_idle_conns"),
	}
	if opts.MaxOpenConns == 0 {
		opts.MaxOpenConns = 10
	}
	if opts.MaxIdleConns == 0 {
		opts.MaxIdleConns = 5
	}

	log.Info().Msg("DB config assembled")
	return masterDSN, nil, opts, nil
}

type RabbitConfig struct {
	Url      string
	Exchange string
	Queue    string
}

func BuildRabbitConfig(cfg *config.Config, log *zerolog.Logger) (RabbitConfig, error) {
	rc := RabbitConfig{
		Url:      cfg.GetString("rabbit.url"),
		Exchange: cfg.GetString("rabbit.exchange"),
		Queue:    cfg.GetString("rabbit.queue"),
	}
	if rc.Url == "" {
		return rc, fmt.Errorf("rabbit.url is required")
	}
	if rc.Exchange == "" {
		rc.Exchange = "notifications"
	}
	if rc.Queue == "" {
		rc.Queue = "notifications.email"
	}
	return rc, nil
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func BuildRedisConfig(cfg *config.Config, log *zerolog.Logger) (RedisConfig, error) {
	rc := RedisConfig{
		Addr:     cfg.GetString("redis.addr"),
		Password: cfg.GetString("redis.password"),
		DB:       cfg.GetInt("redis.db"),
	}
	if rc.Addr == "" {
		return rc, fmt.Errorf("redis.addr is required")
	}
	return rc, nil
}

func BuildSMTPConfig(cfg *config.Config, log *zerolog.Logger) mailer.Config {
	mc := mailer.Config{
		Host:     cfg.GetString("smtp.host"),
		Port:     cfg.GetInt("smtp.port"),
		From:     cfg.GetString("smtp.from"),
		Password: cfg.GetString("smtp.password"),
	}
	if mc.Port == 0 {
		mc.Port = 587
	}
	return mc
}

func BuildPricingPolicy(cfg *config.Config) pricing.Policy {
	p := pricing.DefaultPolicy()
	if v := cfg.GetFloat64("pricing.general_event_package"); v > 0 {
		p.GeneralEventPackage = v
	}
	if v := cfg.GetFloat64("pricing.partner_event_package"); v > 0 {
		p.PartnerEventPackage = v
	}
	if v := cfg.GetFloat64("pricing.partner_workshop_rate"); v > 0 {
		p.PartnerWorkshopRate = v
	}
	return p
}

func BuildAppConfig(cfg *config.Config, log *zerolog.Logger) (service.Config, error) {
	closesAt, err := time.Parse(time.RFC3339, cfg.GetString("symposium.registration_closes_at"))
	if err != nil {
		return service.Config{}, fmt.Errorf("symposium.registration_closes_at must be RFC3339: %w", err)
	}
	dayOne, err := time.Parse(time.RFC3339, cfg.GetString("symposium.day_one"))
	if err != nil {
		return service.Config{}, fmt.Errorf("symposium.day_one must be RFC3339: %w", err)
	}
	dayTwo, err := time.Parse(time.RFC3339, cfg.GetString("symposium.day_two"))
	if err != nil {
		return service.Config{}, fmt.Errorf("symposium.day_two must be RFC3339: %w", err)
	}

	sc := service.Config{
		RegistrationClosesAt: closesAt,
		DayOne:               dayOne,
		DayTwo:               dayTwo,
		AdminUsername:        cfg.GetString("admin.username"),
		AdminPassword:        cfg.GetString("admin.password"),
		SessionTTL:           time.Duration(cfg.GetInt("admin.session_ttl_minutes")) * time.Minute,
	}
	if sc.AdminUsername == "" || sc.AdminPassword == "" {
		return sc, fmt.Errorf("admin.username and admin.password are required")
	}
	if sc.SessionTTL == 0 {
		sc.SessionTTL = 60 * time.Minute
	}
	return sc, nil
}

func AdminSharedSecret(cfg *config.Config) string {
	return cfg.GetString("admin.shared_secret")
}
