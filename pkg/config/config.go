package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/tableside/pkg/enums"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App         AppConfig
	API         APIConfig
	Realtime    RealtimeConfig
	Orders      OrdersConfig
	Persistence PersistenceConfig
	Redis       RedisConfig
	DB          DBConfig
	Display     DisplayConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Persistence.Driver() == enums.PersistenceDriverPostgres {
		if err := cfg.DB.ensureDSN(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if _, err := url.ParseRequestURI(c.API.BaseURL); err != nil {
		return fmt.Errorf("%s must be an absolute url: %w", EnvAPIBaseURL, err)
	}
	realtimeURL, err := url.ParseRequestURI(c.Realtime.BaseURL)
	if err != nil {
		return fmt.Errorf("%s must be an absolute url: %w", EnvRealtimeBaseURL, err)
	}
	if realtimeURL.Scheme != "ws" && realtimeURL.Scheme != "wss" {
		return fmt.Errorf("%s must use ws or wss, got %q", EnvRealtimeBaseURL, realtimeURL.Scheme)
	}
	if _, err := enums.ParseValidationMode(c.Orders.ValidationMode); err != nil {
		return err
	}
	if _, err := enums.ParsePersistenceDriver(c.Persistence.DriverName); err != nil {
		return err
	}
	if c.Realtime.MaxReconnectAttempts < 0 {
		return fmt.Errorf("%s must not be negative", EnvRealtimeMaxAttempts)
	}
	return nil
}

type AppConfig struct {
	Env          string `envconfig:"TABLESIDE_APP_ENV" default:"dev"`
	LogLevel     string `envconfig:"TABLESIDE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TABLESIDE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// APIConfig locates the upstream REST endpoints. Paths are joined onto BaseURL.
type APIConfig struct {
	BaseURL         string        `envconfig:"TABLESIDE_API_BASE_URL" required:"true"`
	AuthToken       string        `envconfig:"TABLESIDE_API_AUTH_TOKEN"`
	OrderCreatePath string        `envconfig:"TABLESIDE_API_ORDER_CREATE_PATH" default:"/orders"`
	OrderListPath   string        `envconfig:"TABLESIDE_API_ORDER_LIST_PATH" default:"/orders"`
	TokenPath       string        `envconfig:"TABLESIDE_API_TOKEN_PATH" default:"/auth/ws-token"`
	MenuPath        string        `envconfig:"TABLESIDE_API_MENU_PATH" default:"/menu"`
	RequestTimeout  time.Duration `envconfig:"TABLESIDE_API_REQUEST_TIMEOUT" default:"0s"`
}

type RealtimeConfig struct {
	BaseURL              string        `envconfig:"TABLESIDE_REALTIME_BASE_URL" required:"true"`
	MaxReconnectAttempts int           `envconfig:"TABLESIDE_REALTIME_MAX_RECONNECT_ATTEMPTS" default:"5"`
	BaseDelay            time.Duration `envconfig:"TABLESIDE_REALTIME_BASE_DELAY" default:"3s"`
	HandshakeTimeout     time.Duration `envconfig:"TABLESIDE_REALTIME_HANDSHAKE_TIMEOUT" default:"10s"`
	WriteTimeout         time.Duration `envconfig:"TABLESIDE_REALTIME_WRITE_TIMEOUT" default:"5s"`
	TokenExpirySkew      time.Duration `envconfig:"TABLESIDE_REALTIME_TOKEN_EXPIRY_SKEW" default:"5s"`
}

type OrdersConfig struct {
	ValidationMode  string `envconfig:"TABLESIDE_ORDERS_VALIDATION_MODE" default:"strict"`
	DefaultPageSize int    `envconfig:"TABLESIDE_ORDERS_PAGE_SIZE" default:"10"`
}

// Mode returns the parsed validation mode; Load has already rejected unknown values.
func (o OrdersConfig) Mode() enums.ValidationMode {
	mode, err := enums.ParseValidationMode(o.ValidationMode)
	if err != nil {
		return enums.ValidationModeStrict
	}
	return mode
}

type PersistenceConfig struct {
	DriverName  string        `envconfig:"TABLESIDE_PERSISTENCE_DRIVER" default:"none"`
	SQLitePath  string        `envconfig:"TABLESIDE_PERSISTENCE_SQLITE_PATH" default:"tableside.db"`
	SnapshotTTL time.Duration `envconfig:"TABLESIDE_PERSISTENCE_SNAPSHOT_TTL" default:"24h"`
	AutoMigrate bool          `envconfig:"TABLESIDE_PERSISTENCE_AUTO_MIGRATE" default:"true"`
}

func (p PersistenceConfig) Driver() enums.PersistenceDriver {
	driver, err := enums.ParsePersistenceDriver(p.DriverName)
	if err != nil {
		return enums.PersistenceDriverNone
	}
	return driver
}

type RedisConfig struct {
	URL          string        `envconfig:"TABLESIDE_REDIS_URL"`
	Address      string        `envconfig:"TABLESIDE_REDIS_ADDR"`
	Password     string        `envconfig:"TABLESIDE_REDIS_PASSWORD"`
	DB           int           `envconfig:"TABLESIDE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TABLESIDE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TABLESIDE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TABLESIDE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TABLESIDE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TABLESIDE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type DBConfig struct {
	DSN string `envconfig:"TABLESIDE_DB_DSN"`

	Host     string `envconfig:"TABLESIDE_DB_HOST"`
	Port     int    `envconfig:"TABLESIDE_DB_PORT" default:"5432"`
	User     string `envconfig:"TABLESIDE_DB_USER"`
	Password string `envconfig:"TABLESIDE_DB_PASSWORD"`
	Name     string `envconfig:"TABLESIDE_DB_NAME"`
	SSLMode  string `envconfig:"TABLESIDE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TABLESIDE_DB_MAX_OPEN_CONNS" default:"5"`
	MaxIdleConns    int           `envconfig:"TABLESIDE_DB_MAX_IDLE_CONNS" default:"2"`
	ConnMaxLifetime time.Duration `envconfig:"TABLESIDE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TABLESIDE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type DisplayConfig struct {
	Port         string `envconfig:"TABLESIDE_DISPLAY_PORT" default:"8090"`
	UserID       int64  `envconfig:"TABLESIDE_DISPLAY_USER_ID" default:"0"`
	Email        string `envconfig:"TABLESIDE_DISPLAY_EMAIL"`
	PageSize     int    `envconfig:"TABLESIDE_DISPLAY_PAGE_SIZE" default:"10"`
	AckOrders    bool   `envconfig:"TABLESIDE_DISPLAY_ACK_ORDERS" default:"false"`
	JoinBaseURL  string `envconfig:"TABLESIDE_DISPLAY_JOIN_BASE_URL" default:"http://localhost:3000/table"`
	QRCodeSizePx int    `envconfig:"TABLESIDE_DISPLAY_QR_SIZE" default:"256"`

	JobInterval time.Duration `envconfig:"TABLESIDE_DISPLAY_JOB_INTERVAL" default:"30s"`

	AllowedOrigins []string `envconfig:"TABLESIDE_DISPLAY_ALLOWED_ORIGINS" default:"http://localhost:3000"`
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
	for _, env := range dbEnvVars {
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

// Enabled reports whether a redis endpoint is configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}
