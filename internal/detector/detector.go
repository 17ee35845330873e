package detector

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"atsassist/pkg/domain"
)

// Platforms 返回平台表副本，元素本身只读
func Platforms() []*domain.ATSPlatform {
	out := make([]*domain.ATSPlatform, len(platforms))
	copy(out, platforms)
	return out
}

// DetectATSPlatform 根据 URL 识别招聘平台，未匹配返回 nil
func DetectATSPlatform(rawURL string) *domain.ATSPlatform {
	lower := strings.ToLower(rawURL)
	for _, p := range platforms {
		if matchPlatform(p, rawURL, lower) {
			return p
		}
	}
	return nil
}

func matchPlatform(p *domain.ATSPlatform, rawURL, lower string) bool {
	for _, d := range p.Domains {
		if strings.Contains(lower, d) {
			return true
		}
	}
	for _, re := range p.Patterns {
		if re.MatchString(rawURL) {
			return true
		}
	}
	return false
}

// DetectPageType 根据路径识别页面类型，未匹配返回 PageNone
func DetectPageType(rawURL string) domain.PageType {
	pt, _ := classify(rawURL)
	return pt
}

// Detect 识别平台、页面类型以及路径中的实体ID
func Detect(rawURL string) domain.PageContext {
	ctx := domain.PageContext{URL: rawURL, DetectedAt: time.Now().UnixMilli()}
	if p := DetectATSPlatform(rawURL); p != nil {
		ctx.Platform = p.Name
	}
	ctx.PageType, ctx.EntityID = classify(rawURL)
	return ctx
}

func classify(rawURL string) (domain.PageType, string) {
	routes := routesOf(rawURL)
	for _, r := range routes {
		if id, ok := firstMatch(candidatePaths, r); ok {
			return domain.PageCandidate, id
		}
	}
	for _, r := range routes {
		if id, ok := firstMatch(positionPaths, r); ok {
			return domain.PagePosition, id
		}
	}
	return domain.PageNone, ""
}

// routesOf 返回 URL 路径以及 hash 路由（如 #/todo/1），解析失败时退回去掉查询串的原串
func routesOf(rawURL string) []string {
	u, err := url.Parse(rawURL)
	if err != nil {
		s := rawURL
		if i := strings.IndexAny(s, "?#"); i >= 0 {
			s = s[:i]
		}
		return []string{s}
	}
	routes := []string{u.Path}
	if frag := u.Fragment; frag != "" {
		if i := strings.IndexByte(frag, '?'); i >= 0 {
			frag = frag[:i]
		}
		if !strings.HasPrefix(frag, "/") {
			frag = "/" + frag
		}
		routes = append(routes, frag)
	}
	return routes
}

func firstMatch(res []*regexp.Regexp, s string) (string, bool) {
	for _, re := range res {
		if m := re.FindStringSubmatch(s); m != nil {
			return m[1], true
		}
	}
	return "", false
}
