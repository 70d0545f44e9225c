package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigContent 默认配置文件内容（包含详细说明）
const DefaultConfigContent = `# trackerlens 配置文件

# 引擎配置
engine:
  # 首次启动时是否启用匹配（之后以持久化状态为准）
  enabled: true
  # 事件循环任务队列长度
  queue_size: 1024

# 规则列表配置
rules:
  # 规则来源，支持 http(s) 地址和本地文件路径
  rule_urls:
    - "https://easylist.to/easylist/easylist.txt"
    - "https://easylist.to/easylist/easyprivacy.txt"
  # 自定义规则文件（不存在时自动创建）
  custom_rules_file: "./custom_rules.txt"
  # 下载缓存目录
  cache_dir: "./rules_cache"
  # 分块加载时每块的规则行数，块与块之间让出调度
  load_chunk_size: 2000
  # 并发下载数
  max_concurrent_downloads: 4
  # 下载超时（秒）
  download_timeout_seconds: 15
  # 是否构建白名单审计引擎（仅用于诊断，白名单规则不会影响匹配）
  audit_exceptions: true
  # 有序分类表：按顺序求值，第一个命中的生效；都不命中时为 ad
  categories:
    - pattern: "(?i)(doubleclick|google-analytics|googletagmanager|analytics|telemetry|beacon|pixel|track(er|ing)?[-_./]|metrics?[-_./]|stats?[-_.]|collect|hotjar|mixpanel|scorecardresearch|quantserve)"
      category: tracker
    - pattern: "(?i)(ads?[-_./]|adserv|adsystem|banner|sponsor|promo|popunder|googlesyndication|adnxs|taboola|outbrain)"
      category: ad

# 匹配结果缓存
cache:
  match_cache_size: 5000
  display_cache_size: 1000

# 会话配置
session:
  # 每个会话保留的最近事件数
  max_events: 100
  # 显示用 URL 最大长度，超出部分以省略号截断
  display_max_len: 60
  # 事件列表已满时：drop_oldest 保留最近 K 条；drop_newest 不再追加新事件
  overflow: "drop_oldest"

# 持久化配置
persist:
  # 存储后端：file 或 sqlite
  backend: "file"
  path: "./trackerlens_state.json"
  # 批量写入延迟（毫秒）
  flush_delay_ms: 1000

# 角标刷新与奖励
effects:
  badge_debounce_ms: 250
  reward_window_ms: 2000
  reward_per_match: 1

# 节省估算
estimates:
  time_per_match_ms: 50
  bytes_per_match: 25600

# 命令接口
webapi:
  enabled: true
  listen_addr: "127.0.0.1:8787"

# 系统配置
system:
  log_level: "info"

# 统计
stats:
  top_hosts_max: 5000
`

// CreateDefaultConfig 创建默认配置文件
func CreateDefaultConfig(filePath string) error {
	return os.WriteFile(filePath, []byte(DefaultConfigContent), 0644)
}

// LoadConfig 从 YAML 文件加载配置
// 文件不存在时自动写出默认配置
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		if err := CreateDefaultConfig(filePath); err != nil {
			return nil, fmt.Errorf("create default config: %w", err)
		}
		data = []byte(DefaultConfigContent)
	}
	return Parse(data)
}

// Parse 解析 YAML 内容并补齐默认值
func Parse(data []byte) (*Config, error) {
	// 预填布尔默认值，YAML 中显式写 false 时会被覆盖
	cfg := Config{
		Engine: EngineConfig{Enabled: true},
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	setDefaultValues(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 检查无法通过默认值修复的配置错误
func (c *Config) Validate() error {
	switch strings.ToLower(c.Persist.Backend) {
	case "file", "sqlite":
	default:
		return fmt.Errorf("unknown persist backend: %s", c.Persist.Backend)
	}
	switch c.Session.Overflow {
	case "drop_oldest", "drop_newest":
	default:
		return fmt.Errorf("unknown session overflow policy: %s", c.Session.Overflow)
	}
	for i, r := range c.Rules.Categories {
		if r.Pattern == "" {
			return fmt.Errorf("rules.categories[%d]: empty pattern", i)
		}
	}
	return nil
}
