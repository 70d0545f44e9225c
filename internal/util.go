package util

import (
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/miekg/dns"
)

// hostPrefix 手动提取主机名的兜底规则：可选协议、可选 userinfo，之后直到 / ? # : 为止
var hostPrefix = regexp.MustCompile(`^(?:[a-zA-Z][a-zA-Z0-9+.\-]*:)?/*(?:[^/?#@]*@)?([^/?#:\s]+)`)

// NormalizeDomain 规范化域名
func NormalizeDomain(domain string) string {
	return strings.TrimRight(strings.ToLower(domain), ".")
}

// ExtractHostname 从 URL 中提取主机名
// 先用 net/url 解析；失败或没有主机部分时用正则兜底，
// 兜底结果必须是合法域名或 IP，否则返回空串。
func ExtractHostname(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}

	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		return NormalizeDomain(u.Hostname())
	}

	m := hostPrefix.FindStringSubmatch(rawURL)
	if m == nil {
		return ""
	}
	host := strings.Trim(m[1], "[]")
	if net.ParseIP(host) != nil {
		return strings.ToLower(host)
	}
	host = NormalizeDomain(host)
	if !IsValidDomain(host) {
		return ""
	}
	return host
}

// IsValidDomain 验证域名格式（至少两级）
func IsValidDomain(domain string) bool {
	domain = strings.TrimRight(domain, ".")
	if len(domain) == 0 || !strings.Contains(domain, ".") {
		return false
	}
	if _, ok := dns.IsDomainName(domain); !ok {
		return false
	}

	for _, label := range strings.Split(domain, ".") {
		if len(label) == 0 || label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}
		for _, ch := range label {
			if !((ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') ||
				(ch >= '0' && ch <= '9') || ch == '-' || ch == '_') {
				return false
			}
		}
	}
	return true
}
