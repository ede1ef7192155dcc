package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

const (
	digits       = "0123456789"
	asciiLetters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
	DBMaxConns  int32  `env:"DB_MAX_CONNS" envDefault:"10"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	JWTSecret            string `env:"JWT_SECRET,required,notEmpty"`
	JWTAccessTTLMinutes  int    `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"60"`
	JWTRefreshTTLMinutes int    `env:"JWT_REFRESH_TTL_MINUTES" envDefault:"43200"`
	SessionCookieSecure  bool   `env:"SESSION_COOKIE_SECURE" envDefault:"false"`

	InviteCode       InviteCodeConfig
	VerificationCode VerificationCodeConfig
	Scheduler        SchedulerConfig

	SendCodeDelayMin time.Duration `env:"SEND_CODE_DELAY_MIN" envDefault:"1s"`
	SendCodeDelayMax time.Duration `env:"SEND_CODE_DELAY_MAX" envDefault:"2s"`
}

// InviteCodeConfig controla la generación de invite codes.
type InviteCodeConfig struct {
	Length      int    `env:"INVITE_CODE_LENGTH" envDefault:"6"`
	Charset     string `env:"INVITE_CODE_CHARSET" envDefault:"ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"`
	MaxAttempts int    `env:"INVITE_CODE_MAX_ATTEMPTS" envDefault:"10"`
}

// VerificationCodeConfig controla la generación y vigencia de los códigos de verificación.
type VerificationCodeConfig struct {
	Length            int    `env:"VERIFICATION_CODE_LENGTH" envDefault:"4"`
	Charset           string `env:"VERIFICATION_CODE_CHARSET" envDefault:"0123456789"`
	NumericOnly       bool   `env:"VERIFICATION_CODE_NUMERIC_ONLY" envDefault:"true"`
	MaxAttempts       int    `env:"VERIFICATION_CODE_MAX_ATTEMPTS" envDefault:"10"`
	ExpirationMinutes int    `env:"VERIFICATION_CODE_EXPIRATION_MINUTES" envDefault:"5"`
}

// Alphabet devuelve el charset efectivo: el configurado si NumericOnly, dígitos y letras si no.
func (c VerificationCodeConfig) Alphabet() string {
	if c.NumericOnly {
		return c.Charset
	}
	return digits + asciiLetters
}

// Expiration devuelve la ventana de validez de un código.
func (c VerificationCodeConfig) Expiration() time.Duration {
	return time.Duration(c.ExpirationMinutes) * time.Minute
}

// SchedulerConfig controla las tareas periódicas.
type SchedulerConfig struct {
	CleanupIntervalMinutes int `env:"CLEANUP_INTERVAL_MINUTES" envDefault:"5"`
	MaxWorkers             int `env:"SCHEDULER_MAX_WORKERS" envDefault:"2"`
}

// CleanupInterval devuelve el intervalo del barrido de códigos expirados.
func (c SchedulerConfig) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalMinutes) * time.Minute
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MaxCodeLength es el ancho de las columnas VARCHAR(16) de códigos.
const MaxCodeLength = 16

// Validate rechaza combinaciones que harían imposible generar códigos.
func (c *Config) Validate() error {
	var errs []error
	if c.InviteCode.Length <= 0 {
		errs = append(errs, errors.New("INVITE_CODE_LENGTH must be positive"))
	}
	if c.InviteCode.Length > MaxCodeLength {
		errs = append(errs, fmt.Errorf("INVITE_CODE_LENGTH must be at most %d", MaxCodeLength))
	}
	if strings.TrimSpace(c.InviteCode.Charset) == "" {
		errs = append(errs, errors.New("INVITE_CODE_CHARSET must not be empty"))
	}
	if c.InviteCode.MaxAttempts <= 0 {
		errs = append(errs, errors.New("INVITE_CODE_MAX_ATTEMPTS must be positive"))
	}
	if c.VerificationCode.Length <= 0 {
		errs = append(errs, errors.New("VERIFICATION_CODE_LENGTH must be positive"))
	}
	if c.VerificationCode.Length > MaxCodeLength {
		errs = append(errs, fmt.Errorf("VERIFICATION_CODE_LENGTH must be at most %d", MaxCodeLength))
	}
	if c.VerificationCode.NumericOnly && strings.TrimSpace(c.VerificationCode.Charset) == "" {
		errs = append(errs, errors.New("VERIFICATION_CODE_CHARSET must not be empty"))
	}
	if c.VerificationCode.MaxAttempts <= 0 {
		errs = append(errs, errors.New("VERIFICATION_CODE_MAX_ATTEMPTS must be positive"))
	}
	if c.VerificationCode.ExpirationMinutes <= 0 {
		errs = append(errs, errors.New("VERIFICATION_CODE_EXPIRATION_MINUTES must be positive"))
	}
	if c.Scheduler.CleanupIntervalMinutes <= 0 {
		errs = append(errs, errors.New("CLEANUP_INTERVAL_MINUTES must be positive"))
	}
	if c.Scheduler.MaxWorkers <= 0 {
		errs = append(errs, errors.New("SCHEDULER_MAX_WORKERS must be positive"))
	}
	if c.SendCodeDelayMin < 0 || c.SendCodeDelayMax < c.SendCodeDelayMin {
		errs = append(errs, fmt.Errorf("invalid send code delay range [%s, %s]", c.SendCodeDelayMin, c.SendCodeDelayMax))
	}
	return errors.Join(errs...)
}
