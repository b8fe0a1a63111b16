package models

// MConfig Structure
type MConfig struct {
	Name        string            `yaml:"name"`
	Host        string            `yaml:"host"`
	Port        int               `yaml:"port"`
	LogLevel    string            `yaml:"log_level"`
	GrpcHost    string            `yaml:"grpc_host"`
	GrpcPort    int               `yaml:"grpc_port"`
	Storage     MStorageConfig    `yaml:"storage"`
	Network     MNetworkConfig    `yaml:"network"`
	DataSource  MDataSourceConfig `yaml:"data_source"`
	Resolutions []string          `yaml:"resolutions"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"`
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
}

type MNetworkConfig struct {
	Enabled            bool     `yaml:"enabled"`
	Proxies            []string `yaml:"proxies"`
	RequestTimeout     int      `yaml:"timeout"`
	MaxRetries         int      `yaml:"retries"`
	ConcurrentRequests int      `yaml:"concurrent_requests"`
	UserAgent          string   `yaml:"user_agent"`
}

type MDataSourceConfig struct {
	DataRetentionDays     int             `yaml:"data_retention_days"`
	UpdateIntervalSeconds int             `yaml:"update_interval_seconds"`
	Sources               []MSourceConfig `yaml:"sources"`
}

// MSourceConfig configures one candle provider. Type selects the
// implementation ("yahoo", "binance", "polygon"); Quote is the quote
// currency every symbol of the source is priced in.
type MSourceConfig struct {
	Name      string   `yaml:"name"`
	Type      string   `yaml:"type"`
	Quote     string   `yaml:"quote"`
	Symbols   []string `yaml:"symbols"`
	APIKey    string   `yaml:"api_key,omitempty"`    // Optional
	SecretKey string   `yaml:"secret_key,omitempty"` // Optional
}
