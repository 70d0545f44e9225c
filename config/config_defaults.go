package config

// DefaultCategories 默认分类顺序：追踪器谓词在前
var DefaultCategories = []CategoryRule{
	{
		Pattern:  `(?i)(doubleclick|google-analytics|googletagmanager|analytics|telemetry|beacon|pixel|track(er|ing)?[-_./]|metrics?[-_./]|stats?[-_.]|collect|hotjar|mixpanel|scorecardresearch|quantserve)`,
		Category: "tracker",
	},
	{
		Pattern:  `(?i)(ads?[-_./]|adserv|adsystem|banner|sponsor|promo|popunder|googlesyndication|adnxs|taboola|outbrain)`,
		Category: "ad",
	},
}

// setDefaultValues 设置配置文件中缺失字段的默认值
func setDefaultValues(cfg *Config) {
	if cfg.Engine.QueueSize == 0 {
		cfg.Engine.QueueSize = 1024
	}

	setRulesDefaults(&cfg.Rules)

	// Cache 配置默认值
	if cfg.Cache.MatchCacheSize == 0 {
		cfg.Cache.MatchCacheSize = 5000
	}
	if cfg.Cache.DisplayCacheSize == 0 {
		cfg.Cache.DisplayCacheSize = 1000
	}

	// Session 配置默认值
	if cfg.Session.MaxEvents == 0 {
		cfg.Session.MaxEvents = 100
	}
	if cfg.Session.DisplayMaxLen == 0 {
		cfg.Session.DisplayMaxLen = 60
	}
	if cfg.Session.Overflow == "" {
		cfg.Session.Overflow = "drop_oldest"
	}

	setPersistDefaults(&cfg.Persist)
	setEffectsDefaults(&cfg.Effects)

	if cfg.Estimates.TimePerMatchMs == 0 {
		cfg.Estimates.TimePerMatchMs = 50
	}
	if cfg.Estimates.BytesPerMatch == 0 {
		cfg.Estimates.BytesPerMatch = 25 * 1024
	}

	if cfg.WebAPI.ListenAddr == "" {
		cfg.WebAPI.ListenAddr = "127.0.0.1:8787"
	}
	if cfg.System.LogLevel == "" {
		cfg.System.LogLevel = "info"
	}
	if cfg.Stats.TopHostsMax == 0 {
		cfg.Stats.TopHostsMax = 5000
	}
}

// setRulesDefaults 设置规则列表配置的默认值
func setRulesDefaults(r *RulesConfig) {
	if r.CacheDir == "" {
		r.CacheDir = "./rules_cache"
	}
	if r.LoadChunkSize == 0 {
		r.LoadChunkSize = 2000
	}
	if r.MaxConcurrentDownloads == 0 {
		r.MaxConcurrentDownloads = 4
	}
	if r.DownloadTimeoutSeconds == 0 {
		r.DownloadTimeoutSeconds = 15
	}
	if len(r.Categories) == 0 {
		r.Categories = append([]CategoryRule(nil), DefaultCategories...)
	}
}

// setPersistDefaults 设置持久化配置的默认值
func setPersistDefaults(p *PersistConfig) {
	if p.Backend == "" {
		p.Backend = "file"
	}
	if p.Path == "" {
		if p.Backend == "sqlite" {
			p.Path = "./trackerlens_state.db"
		} else {
			p.Path = "./trackerlens_state.json"
		}
	}
	if p.FlushDelayMs == 0 {
		p.FlushDelayMs = 1000
	}
}

// setEffectsDefaults 设置角标与奖励配置的默认值
func setEffectsDefaults(e *EffectsConfig) {
	if e.BadgeDebounceMs == 0 {
		e.BadgeDebounceMs = 250
	}
	if e.RewardWindowMs == 0 {
		e.RewardWindowMs = 2000
	}
	if e.RewardPerMatch == 0 {
		e.RewardPerMatch = 1
	}
}
