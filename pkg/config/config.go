package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Stripe        StripeConfig
	Checkout      CheckoutConfig
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"MEDMARKET_APP_ENV" required:"true"`
	Port         string   `envconfig:"MEDMARKET_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"MEDMARKET_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"MEDMARKET_LOG_WARN_STACK" default:"false"`
	LogFormat    string   `envconfig:"MEDMARKET_LOG_FORMAT" default:"json"`
	CORSOrigins  []string `envconfig:"MEDMARKET_CORS_ORIGINS" default:"http://localhost:5173"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"MEDMARKET_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"MEDMARKET_DB_DSN"`
	Driver string `envconfig:"MEDMARKET_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"MEDMARKET_DB_HOST"`
	Port     int    `envconfig:"MEDMARKET_DB_PORT" default:"5432"`
	User     string `envconfig:"MEDMARKET_DB_USER"`
	Password string `envconfig:"MEDMARKET_DB_PASSWORD"`
	Name     string `envconfig:"MEDMARKET_DB_NAME"`
	SSLMode  string `envconfig:"MEDMARKET_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MEDMARKET_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MEDMARKET_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MEDMARKET_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MEDMARKET_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// SlowQueryThreshold logs statements slower than this at warn level.
	SlowQueryThreshold time.Duration `envconfig:"MEDMARKET_DB_SLOW_QUERY_THRESHOLD" default:"200ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MEDMARKET_REDIS_URL" required:"true"`
	Password     string        `envconfig:"MEDMARKET_REDIS_PASSWORD"`
	PoolSize     int           `envconfig:"MEDMARKET_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MEDMARKET_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MEDMARKET_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MEDMARKET_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MEDMARKET_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"MEDMARKET_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"MEDMARKET_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"MEDMARKET_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"MEDMARKET_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"MEDMARKET_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"MEDMARKET_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"MEDMARKET_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"MEDMARKET_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"MEDMARKET_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"MEDMARKET_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"MEDMARKET_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"MEDMARKET_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"MEDMARKET_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"MEDMARKET_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"MEDMARKET_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"MEDMARKET_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"MEDMARKET_AUTO_MIGRATE" default:"false"`
	// DoctorApproval gates checkout for doctors until an admin approves the registration.
	DoctorApproval bool `envconfig:"MEDMARKET_FEATURE_DOCTOR_APPROVAL" default:"true"`
}

type StripeConfig struct {
	APIKey string `envconfig:"MEDMARKET_STRIPE_API_KEY"`
	Secret string `envconfig:"MEDMARKET_STRIPE_SECRET"`
	Env    string `envconfig:"MEDMARKET_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type CheckoutConfig struct {
	Currency        string        `envconfig:"MEDMARKET_CHECKOUT_CURRENCY" default:"usd"`
	PendingOrderTTL time.Duration `envconfig:"MEDMARKET_CHECKOUT_PENDING_ORDER_TTL" default:"1h"`
}

func (c CheckoutConfig) validate() error {
	if len(strings.TrimSpace(c.Currency)) != 3 {
		return fmt.Errorf("%s must be a 3-letter ISO currency code", EnvCheckoutCurrency)
	}
	if c.PendingOrderTTL <= 0 {
		return fmt.Errorf("%s must be positive", EnvCheckoutPendingTTL)
	}
	return nil
}

type CronConfig struct {
	Interval      time.Duration `envconfig:"MEDMARKET_CRON_INTERVAL" default:"5m"`
	CartRetention time.Duration `envconfig:"MEDMARKET_CRON_CART_RETENTION" default:"720h"`
	JobTimeout    time.Duration `envconfig:"MEDMARKET_CRON_JOB_TIMEOUT" default:"2m"`
	LockTTL       time.Duration `envconfig:"MEDMARKET_CRON_LOCK_TTL" default:"10m"`
	// MetricsAddr exposes /metrics from the worker when set, e.g. ":9091".
	MetricsAddr string `envconfig:"MEDMARKET_CRON_METRICS_ADDR"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range dbPartsEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
