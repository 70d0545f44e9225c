package adblock

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"trackerlens/config"
	"trackerlens/logger"
)

const (
	defaultMaxConcurrentDownloads = 4
	defaultDownloadTimeout        = 15 * time.Second
	maxRuleFileSize               = 50 * 1024 * 1024
)

var loaderLog = logger.With("RuleLoader")

// RuleLoader 下载并读取规则源
type RuleLoader struct {
	client        *http.Client
	maxConcurrent int
	cacheDir      string
}

func NewRuleLoader(cfg *config.RulesConfig) *RuleLoader {
	maxConcurrent := cfg.MaxConcurrentDownloads
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrentDownloads
	}
	timeout := defaultDownloadTimeout
	if cfg.DownloadTimeoutSeconds > 0 {
		timeout = time.Duration(cfg.DownloadTimeoutSeconds) * time.Second
	}
	return &RuleLoader{
		client:        &http.Client{Timeout: timeout},
		maxConcurrent: maxConcurrent,
		cacheDir:      cfg.CacheDir,
	}
}

// isLocalSource 判断规则源是否为本地文件（file:// 或普通路径）
// scheme 不区分大小写。
func isLocalSource(url string) bool {
	lower := strings.ToLower(url)
	if strings.HasPrefix(lower, "file://") {
		return true
	}
	return !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://")
}

func localPath(url string) string {
	if len(url) >= len("file://") && strings.EqualFold(url[:len("file://")], "file://") {
		return url[len("file://"):]
	}
	return url
}

// UpdateFromSource downloads rules from a single source URL.
// It handles caching with ETag and Last-Modified headers; on a fresh download
// the new validators are written into source, which must be a private copy.
// It returns the path to the cached file, the number of lines, and any error.
func (rl *RuleLoader) UpdateFromSource(ctx context.Context, source *SourceInfo) (string, int, error) {
	if isLocalSource(source.URL) {
		return rl.loadLocalFile(localPath(source.URL))
	}
	return rl.downloadRemoteFile(ctx, source)
}

func (rl *RuleLoader) downloadRemoteFile(ctx context.Context, source *SourceInfo) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.URL, nil)
	if err != nil {
		return "", 0, err
	}

	cachePath := filepath.Join(rl.cacheDir, source.CacheFile)
	_, statErr := os.Stat(cachePath)
	haveCache := statErr == nil

	// 只有本地缓存存在时才发送条件请求
	if haveCache {
		if source.ETag != "" {
			req.Header.Set("If-None-Match", source.ETag)
		}
		if source.LastModified != "" {
			req.Header.Set("If-Modified-Since", source.LastModified)
		}
	}

	resp, err := rl.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified && haveCache {
		return cachePath, source.RuleCount, nil
	}

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("bad status: %s", resp.Status)
	}

	// 先写临时文件，完成后再替换，避免中途失败破坏旧缓存
	tmpPath := cachePath + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return "", 0, err
	}

	limitedReader := &io.LimitedReader{R: resp.Body, N: maxRuleFileSize + 1}
	ruleCount, err := countLines(io.TeeReader(limitedReader, file))
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && limitedReader.N == 0 {
		err = fmt.Errorf("file exceeds %dMB limit", maxRuleFileSize/1024/1024)
	}
	if err != nil {
		os.Remove(tmpPath)
		return "", 0, err
	}
	if err := os.Rename(tmpPath, cachePath); err != nil {
		os.Remove(tmpPath)
		return "", 0, err
	}

	source.ETag = resp.Header.Get("ETag")
	source.LastModified = resp.Header.Get("Last-Modified")

	return cachePath, ruleCount, nil
}

func (rl *RuleLoader) loadLocalFile(path string) (string, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer file.Close()

	ruleCount, err := countLines(file)
	return path, ruleCount, err
}

func countLines(r io.Reader) (int, error) {
	buf := make([]byte, 32*1024)
	count := 0
	lineSep := []byte{'\n'}

	for {
		c, err := r.Read(buf)
		count += bytes.Count(buf[:c], lineSep)

		switch {
		case err == io.EOF:
			return count, nil
		case err != nil:
			return count, err
		}
	}
}

// FetchAll 并发更新所有启用的规则源，返回失败的源
// 单个源失败只记录日志，不影响其他源。
func (rl *RuleLoader) FetchAll(ctx context.Context, sm *SourceManager) []string {
	sources := sm.GetAllSources()
	failed := make([]string, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rl.maxConcurrent)
	for i, source := range sources {
		if !source.Enabled {
			continue
		}
		g.Go(func() error {
			_, ruleCount, err := rl.UpdateFromSource(gctx, source)
			sm.UpdateSourceStatus(source.URL, ruleCount, err)
			if err != nil {
				loaderLog.Errorf("fetch %s failed: %v", source.URL, err)
				failed[i] = source.URL
				return nil
			}
			sm.UpdateValidators(source.URL, source.ETag, source.LastModified)
			loaderLog.Infof("fetched %s (%d lines)", source.URL, ruleCount)
			return nil
		})
	}
	g.Wait()

	var result []string
	for _, url := range failed {
		if url != "" {
			result = append(result, url)
		}
	}
	return result
}

// LoadAllRules reads all rule lines from the cached files.
// Lines keep the configured source order so that later sources win on
// duplicate patterns.
func (rl *RuleLoader) LoadAllRules(ctx context.Context, sources []*SourceInfo) ([]string, error) {
	perSource := make([][]string, len(sources))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(rl.maxConcurrent)
	for i, source := range sources {
		if !source.Enabled {
			continue
		}
		g.Go(func() error {
			path := rl.cachedPath(source)
			if path == "" {
				return nil
			}
			lines, err := readLines(path)
			if err != nil {
				loaderLog.Warnf("read %s: %v", path, err)
				return nil
			}
			perSource[i] = lines
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var allRules []string
	for _, lines := range perSource {
		allRules = append(allRules, lines...)
	}
	return allRules, nil
}

// cachedPath 返回可读取的规则文件路径，远程源尚无缓存时返回空串
func (rl *RuleLoader) cachedPath(s *SourceInfo) string {
	if isLocalSource(s.URL) {
		return localPath(s.URL)
	}
	cachePath := filepath.Join(rl.cacheDir, s.CacheFile)
	if _, err := os.Stat(cachePath); err != nil {
		return ""
	}
	return cachePath
}

func readLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}
