package config

// Config 主配置结构
type Config struct {
	Engine    EngineConfig    `yaml:"engine" json:"engine"`
	Rules     RulesConfig     `yaml:"rules" json:"rules"`
	Cache     CacheConfig     `yaml:"cache" json:"cache"`
	Session   SessionConfig   `yaml:"session" json:"session"`
	Persist   PersistConfig   `yaml:"persist" json:"persist"`
	Effects   EffectsConfig   `yaml:"effects" json:"effects"`
	Estimates EstimatesConfig `yaml:"estimates" json:"estimates"`
	WebAPI    WebAPIConfig    `yaml:"webapi" json:"webapi"`
	System    SystemConfig    `yaml:"system" json:"system"`
	Stats     StatsConfig     `yaml:"stats" json:"stats"`
}

// EngineConfig 引擎全局开关
type EngineConfig struct {
	// 首次启动时的开关状态；之后以持久化的值为准
	Enabled bool `yaml:"enabled" json:"enabled"`
	// 事件循环任务队列长度
	QueueSize int `yaml:"queue_size,omitempty" json:"queue_size"`
}

// CategoryRule 有序分类表中的一项，按书写顺序求值，先命中者生效
type CategoryRule struct {
	Pattern  string `yaml:"pattern" json:"pattern"`
	Category string `yaml:"category" json:"category"` // ad | tracker
}

// RulesConfig 规则列表配置
type RulesConfig struct {
	RuleURLs               []string       `yaml:"rule_urls,omitempty" json:"rule_urls"`
	CustomRulesFile        string         `yaml:"custom_rules_file,omitempty" json:"custom_rules_file"`
	CacheDir               string         `yaml:"cache_dir,omitempty" json:"cache_dir"`
	LoadChunkSize          int            `yaml:"load_chunk_size,omitempty" json:"load_chunk_size"`
	MaxConcurrentDownloads int            `yaml:"max_concurrent_downloads,omitempty" json:"max_concurrent_downloads"`
	DownloadTimeoutSeconds int            `yaml:"download_timeout_seconds,omitempty" json:"download_timeout_seconds"`
	AuditExceptions        bool           `yaml:"audit_exceptions" json:"audit_exceptions"`
	Categories             []CategoryRule `yaml:"categories,omitempty" json:"categories"`
}

// CacheConfig 匹配结果缓存配置
type CacheConfig struct {
	MatchCacheSize   int `yaml:"match_cache_size,omitempty" json:"match_cache_size"`
	DisplayCacheSize int `yaml:"display_cache_size,omitempty" json:"display_cache_size"`
}

// SessionConfig 会话（标签页）配置
type SessionConfig struct {
	MaxEvents     int    `yaml:"max_events,omitempty" json:"max_events"`           // 每个会话保留的最近事件数 K
	DisplayMaxLen int    `yaml:"display_max_len,omitempty" json:"display_max_len"` // 显示用 URL 的最大长度
	Overflow      string `yaml:"overflow,omitempty" json:"overflow"`               // 事件列表满时的策略: drop_oldest | drop_newest
}

// PersistConfig 持久化配置
type PersistConfig struct {
	Backend      string `yaml:"backend,omitempty" json:"backend"` // file | sqlite
	Path         string `yaml:"path,omitempty" json:"path"`
	FlushDelayMs int    `yaml:"flush_delay_ms,omitempty" json:"flush_delay_ms"`
}

// EffectsConfig 角标刷新与奖励累计配置
type EffectsConfig struct {
	BadgeDebounceMs int `yaml:"badge_debounce_ms,omitempty" json:"badge_debounce_ms"`
	RewardWindowMs  int `yaml:"reward_window_ms,omitempty" json:"reward_window_ms"`
	RewardPerMatch  int `yaml:"reward_per_match,omitempty" json:"reward_per_match"`
}

// EstimatesConfig 节省时间/流量的估算参数
type EstimatesConfig struct {
	TimePerMatchMs int `yaml:"time_per_match_ms,omitempty" json:"time_per_match_ms"`
	BytesPerMatch  int `yaml:"bytes_per_match,omitempty" json:"bytes_per_match"`
}

// WebAPIConfig 命令接口 HTTP 服务配置
type WebAPIConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	ListenAddr string `yaml:"listen_addr,omitempty" json:"listen_addr"`
}

// SystemConfig 系统配置
type SystemConfig struct {
	LogLevel string `yaml:"log_level,omitempty" json:"log_level"`
}

// StatsConfig 统计配置
type StatsConfig struct {
	TopHostsMax int `yaml:"top_hosts_max,omitempty" json:"top_hosts_max"`
}
