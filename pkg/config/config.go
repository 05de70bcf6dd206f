package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	Carrier       CarrierConfig
	Admin         AdminConfig
	Compensation  CompensationConfig
	CORS          CORSConfig
	FeatureFlags  FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	err := multierr.Combine(
		cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite),
		cfg.Carrier.validate(),
	)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"KIBBLE_APP_ENV" required:"true"`
	Port         string `envconfig:"KIBBLE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"KIBBLE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"KIBBLE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN        string `envconfig:"KIBBLE_DB_DSN"`
	SQLitePath string `envconfig:"KIBBLE_DB_SQLITE_PATH" default:"kibble.db"`

	LegacyHost     string `envconfig:"KIBBLE_DB_HOST"`
	LegacyPort     int    `envconfig:"KIBBLE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"KIBBLE_DB_USER"`
	LegacyPassword string `envconfig:"KIBBLE_DB_PASSWORD"`
	LegacyName     string `envconfig:"KIBBLE_DB_NAME"`
	LegacySSLMode  string `envconfig:"KIBBLE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"KIBBLE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"KIBBLE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"KIBBLE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"KIBBLE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"KIBBLE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"KIBBLE_REDIS_ADDR"`
	Password     string        `envconfig:"KIBBLE_REDIS_PASSWORD"`
	DB           int           `envconfig:"KIBBLE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"KIBBLE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"KIBBLE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"KIBBLE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"KIBBLE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"KIBBLE_REDIS_WRITE_TIMEOUT" default:"5s"`

	IdempotencyTTL  time.Duration `envconfig:"KIBBLE_IDEMPOTENCY_TTL" default:"24h"`
	RateLimitWindow time.Duration `envconfig:"KIBBLE_RATE_LIMIT_WINDOW" default:"1m"`
	RateLimitLimit  int64         `envconfig:"KIBBLE_RATE_LIMIT_LIMIT" default:"120"`
	CartTTL         time.Duration `envconfig:"KIBBLE_CART_TTL" default:"720h"`
	DraftTTL        time.Duration `envconfig:"KIBBLE_CHECKOUT_DRAFT_TTL" default:"168h"`
	CheckoutLockTTL time.Duration `envconfig:"KIBBLE_CHECKOUT_LOCK_TTL" default:"2m"`
	OrderCacheTTL   time.Duration `envconfig:"KIBBLE_ORDER_CACHE_TTL" default:"5m"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"KIBBLE_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"KIBBLE_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"KIBBLE_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"KIBBLE_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"KIBBLE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"KIBBLE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"KIBBLE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"KIBBLE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"KIBBLE_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"KIBBLE_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"KIBBLE_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"KIBBLE_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"KIBBLE_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"KIBBLE_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"KIBBLE_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

// CarrierConfig holds the Nova Poshta account and cargo defaults.
type CarrierConfig struct {
	APIKey                 string        `envconfig:"KIBBLE_CARRIER_API_KEY" required:"true"`
	BaseURL                string        `envconfig:"KIBBLE_CARRIER_BASE_URL" default:"https://api.novaposhta.ua/v2.0/json/"`
	Timeout                time.Duration `envconfig:"KIBBLE_CARRIER_TIMEOUT" default:"15s"`
	SenderCityRef          string        `envconfig:"KIBBLE_CARRIER_SENDER_CITY_REF" default:"8d5a980d-391c-11dd-90d9-001a92567626"`
	SenderWarehouseTypeRef string        `envconfig:"KIBBLE_CARRIER_SENDER_WAREHOUSE_TYPE_REF" default:"841339c7-591a-42e2-8233-7a0a00f0ed6f"`
	SenderPhone            string        `envconfig:"KIBBLE_CARRIER_SENDER_PHONE"`
	ServiceType            string        `envconfig:"KIBBLE_CARRIER_SERVICE_TYPE" default:"WarehouseWarehouse"`
	WarehousePageSize      int           `envconfig:"KIBBLE_CARRIER_WAREHOUSE_PAGE_SIZE" default:"500"`
	DescriptionLimit       int           `envconfig:"KIBBLE_CARRIER_DESCRIPTION_LIMIT" default:"100"`
	PackagingAllowanceKg   string        `envconfig:"KIBBLE_CARRIER_PACKAGING_ALLOWANCE_KG" default:"0.1"`
	DirectoryCacheTTL      time.Duration `envconfig:"KIBBLE_CARRIER_DIRECTORY_CACHE_TTL" default:"24h"`
}

func (c CarrierConfig) validate() error {
	v, err := decimal.NewFromString(strings.TrimSpace(c.PackagingAllowanceKg))
	if err != nil {
		return fmt.Errorf("%s: %q is not a decimal", EnvPackagingAllow, c.PackagingAllowanceKg)
	}
	if v.IsNegative() {
		return fmt.Errorf("%s must not be negative, got %s", EnvPackagingAllow, v)
	}
	return nil
}

// PackagingAllowance is the per-unit packaging weight in kg. Load has
// already rejected unparsable values.
func (c CarrierConfig) PackagingAllowance() decimal.Decimal {
	v, err := decimal.NewFromString(strings.TrimSpace(c.PackagingAllowanceKg))
	if err != nil || v.IsNegative() {
		return decimal.Zero
	}
	return v
}

// AdminConfig lists identities promoted to the admin role.
type AdminConfig struct {
	Emails []string `envconfig:"KIBBLE_ADMIN_EMAILS"`
}

// IsAdminEmail reports whether email is configured as an administrator.
func (a AdminConfig) IsAdminEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	for _, candidate := range a.Emails {
		if strings.ToLower(strings.TrimSpace(candidate)) == email {
			return true
		}
	}
	return false
}

type CompensationConfig struct {
	MaxAttempts int           `envconfig:"KIBBLE_COMPENSATION_MAX_ATTEMPTS" default:"10"`
	BatchSize   int           `envconfig:"KIBBLE_COMPENSATION_BATCH_SIZE" default:"20"`
	Interval    time.Duration `envconfig:"KIBBLE_CRON_INTERVAL" default:"1m"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"KIBBLE_CORS_ALLOWED_ORIGINS" default:"http://localhost:5173"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"KIBBLE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"KIBBLE_AUTO_MIGRATE" default:"false"`
	Realtime    bool `envconfig:"KIBBLE_REALTIME" default:"true"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" || useSQLite {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
