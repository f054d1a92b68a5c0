package types

import "time"

// Config 主配置结构
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Redis     RedisConfig     `mapstructure:"redis"`
	DingTalk  DingTalkConfig  `mapstructure:"dingtalk"`
	PushPlus  PushPlusConfig  `mapstructure:"pushplus"`
	Alert     AlertConfig     `mapstructure:"alert"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Network   NetworkConfig   `mapstructure:"network"`
	Provider  ProviderConfig  `mapstructure:"provider"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Server    ServerConfig    `mapstructure:"server"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`       // 日志级别
	FilePath   string `mapstructure:"file_path"`   // 日志输出目录，为空时只输出到控制台
	MaxSize    int    `mapstructure:"max_size"`    // 日志文件大小 单位：MB，超限后会自动切割
	MaxAge     int    `mapstructure:"max_age"`     // 日志文件存放时间 单位：天
	MaxBackups int    `mapstructure:"max_backups"` // 日志文件备份数量
	Compress   bool   `mapstructure:"compress"`    // 日志文件压缩
}

// RedisConfig Redis配置，URL为空时只使用内存缓存
type RedisConfig struct {
	URL      string `mapstructure:"url"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// DingTalkConfig 钉钉配置
type DingTalkConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
	Secret     string `mapstructure:"secret"`
}

// PushPlusConfig PushPlus配置
type PushPlusConfig struct {
	UserToken string `mapstructure:"user_token"`
	To        string `mapstructure:"to"` // 好友令牌，多人用逗号分隔
}

// AlertConfig 预警配置
type AlertConfig struct {
	Threshold float64 `mapstructure:"threshold"` // 涨跌幅阈值（百分比）
}

// FetchConfig 数据获取配置
type FetchConfig struct {
	Interval       time.Duration `mapstructure:"interval"`
	Mode           string        `mapstructure:"mode"`            // live 或 mock
	MockDelay      time.Duration `mapstructure:"mock_delay"`      // mock模式下模拟的网络延迟
	RequestSpacing time.Duration `mapstructure:"request_spacing"` // 连续请求之间的间隔
	MaxAttempts    int           `mapstructure:"max_attempts"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// NetworkConfig 网络配置
type NetworkConfig struct {
	Proxy   string        `mapstructure:"proxy"`   // HTTP代理地址，如 http://127.0.0.1:7890
	Timeout time.Duration `mapstructure:"timeout"` // 网络超时时间
}

// ProviderConfig 行情数据源地址
type ProviderConfig struct {
	CryptoBaseURL string `mapstructure:"crypto_base_url"`
	EquityBaseURL string `mapstructure:"equity_base_url"`
}

// DashboardConfig 启动时的默认跟踪配置
type DashboardConfig struct {
	Market    string   `mapstructure:"market"`
	Symbols   []string `mapstructure:"symbols"`
	TimeRange string   `mapstructure:"time_range"`
}

// ServerConfig HTTP服务配置
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}
