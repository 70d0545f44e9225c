package adblock

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"trackerlens/config"
)

type SourceStatus struct {
	URL        string    `json:"url"`
	Enabled    bool      `json:"enabled"`
	Status     string    `json:"status"` // "active", "failed", "bad"
	RuleCount  int       `json:"rule_count"`
	LastUpdate time.Time `json:"last_update"`
	LastError  string    `json:"last_error"`
}

type SourceInfo struct {
	URL          string    `json:"url"`
	Enabled      bool      `json:"enabled"`
	ETag         string    `json:"etag"`
	LastModified string    `json:"last_modified"`
	CacheFile    string    `json:"cache_file"`
	RuleCount    int       `json:"rule_count"`
	LastUpdate   time.Time `json:"last_update"`
	LastError    string    `json:"last_error"`
	FailCount    int       `json:"fail_count"`
	Status       string    `json:"status"` // active | failed | bad
}

// SourceManager 维护规则源列表及其缓存元数据
// 源的顺序与配置一致，自定义规则文件总是最后一个。
// 对外返回的 SourceInfo 都是副本，修改只能通过 SourceManager 的方法完成。
type SourceManager struct {
	sources  map[string]*SourceInfo
	order    []string
	metaFile string
	mu       sync.RWMutex
	saveMu   sync.Mutex
}

func NewSourceManager(cfg *config.RulesConfig) (*SourceManager, error) {
	if err := os.MkdirAll(cfg.CacheDir, 0755); err != nil {
		return nil, err
	}

	sm := &SourceManager{
		sources:  make(map[string]*SourceInfo),
		metaFile: filepath.Join(cfg.CacheDir, "rules_meta.json"),
	}

	known, err := sm.loadMeta()
	if err != nil && !os.IsNotExist(err) {
		loaderLog.Warnf("ignoring rules metadata %s: %v", sm.metaFile, err)
	}

	for _, url := range cfg.RuleURLs {
		sm.addSource(url, known[url])
	}
	if cfg.CustomRulesFile != "" {
		if err := sm.ensureCustomRulesFile(cfg.CustomRulesFile); err != nil {
			return nil, err
		}
		sm.addSource(cfg.CustomRulesFile, known[cfg.CustomRulesFile])
	}

	return sm, nil
}

// loadMeta 读取上次保存的 ETag 等元数据；只保留配置中仍存在的源
func (sm *SourceManager) loadMeta() (map[string]*SourceInfo, error) {
	data, err := os.ReadFile(sm.metaFile)
	if err != nil {
		return nil, err
	}

	var sources []*SourceInfo
	if err := json.Unmarshal(data, &sources); err != nil {
		return nil, err
	}

	known := make(map[string]*SourceInfo, len(sources))
	for _, s := range sources {
		known[s.URL] = s
	}
	return known, nil
}

// SaveMeta 保存规则源元数据（临时文件 + 重命名）
func (sm *SourceManager) SaveMeta() error {
	sm.saveMu.Lock()
	defer sm.saveMu.Unlock()

	data, err := json.MarshalIndent(sm.GetAllSources(), "", "  ")
	if err != nil {
		return err
	}

	tmp := sm.metaFile + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, sm.metaFile)
}

func (sm *SourceManager) addSource(url string, known *SourceInfo) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, exists := sm.sources[url]; exists {
		return
	}
	// 已知源保留上次保存的启用状态
	if known == nil {
		h := sha256.Sum256([]byte(url))
		known = &SourceInfo{
			URL:       url,
			Enabled:   true,
			Status:    "active",
			CacheFile: "rules_" + hex.EncodeToString(h[:16]) + ".txt",
		}
	}
	sm.sources[url] = known
	sm.order = append(sm.order, url)
}

// GetSource 返回源的副本，未知源返回 nil
func (sm *SourceManager) GetSource(url string) *SourceInfo {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	s, ok := sm.sources[url]
	if !ok {
		return nil
	}
	c := *s
	return &c
}

// GetAllSources 按配置顺序返回所有源的副本
func (sm *SourceManager) GetAllSources() []*SourceInfo {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	sources := make([]*SourceInfo, 0, len(sm.order))
	for _, url := range sm.order {
		c := *sm.sources[url]
		sources = append(sources, &c)
	}
	return sources
}

// SetEnabled 启用或禁用某个源，下次加载时生效
func (sm *SourceManager) SetEnabled(url string, enabled bool) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	source, ok := sm.sources[url]
	if !ok {
		return false
	}
	source.Enabled = enabled
	return true
}

func (sm *SourceManager) UpdateSourceStatus(url string, ruleCount int, err error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if source, exists := sm.sources[url]; exists {
		source.LastUpdate = time.Now()
		if err != nil {
			source.LastError = err.Error()
			source.FailCount++
			source.Status = "failed"
			if source.FailCount >= 3 {
				source.Status = "bad"
			}
		} else {
			source.RuleCount = ruleCount
			source.LastError = ""
			source.FailCount = 0
			source.Status = "active"
		}
	}
}

// UpdateValidators 记录下载成功后服务器返回的缓存校验头
func (sm *SourceManager) UpdateValidators(url, etag, lastModified string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if source, exists := sm.sources[url]; exists {
		source.ETag = etag
		source.LastModified = lastModified
	}
}

func (sm *SourceManager) GetStatuses() []SourceStatus {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	statuses := make([]SourceStatus, 0, len(sm.order))
	for _, url := range sm.order {
		s := sm.sources[url]
		statuses = append(statuses, SourceStatus{
			URL:        s.URL,
			Enabled:    s.Enabled,
			Status:     s.Status,
			RuleCount:  s.RuleCount,
			LastUpdate: s.LastUpdate,
			LastError:  s.LastError,
		})
	}
	return statuses
}

// ensureCustomRulesFile creates the custom rules file if it doesn't exist
func (sm *SourceManager) ensureCustomRulesFile(filePath string) error {
	if _, err := os.Stat(filePath); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	defaultContent := `! TrackerLens 自定义过滤规则文件
!
! 每行一条规则，匹配请求 URL 中任意位置出现的子串：
!
!   ||ads.example.com^       - 匹配包含 ads.example.com 的 URL
!   /banner/                 - 匹配路径中包含 /banner/ 的 URL
!   pixel.gif$image          - $ 之后的选项会被忽略
!
! 以 ! 开头的行为注释；元素隐藏规则 (##) 和白名单规则 (@@) 会被跳过。
! 分类由 config.yaml 中 rules.categories 的有序正则决定，默认为广告。
!
! 示例规则（去掉行首的 ! 以启用）：
! ||doubleclick.net^
! ||googlesyndication.com^

`
	return os.WriteFile(filePath, []byte(defaultContent), 0644)
}
