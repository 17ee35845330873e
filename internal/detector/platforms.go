package detector

import (
	"regexp"

	"atsassist/pkg/domain"
)

// platforms 平台表，顺序即匹配优先级
var platforms = []*domain.ATSPlatform{
	{
		Name:     "Greenhouse",
		Domains:  []string{"greenhouse.io"},
		Patterns: compile(`[?&]gh_jid=\d+`, `^https?://[^/]*\.greenhouse\.io/`),
	},
	{
		Name:     "Lever",
		Domains:  []string{"lever.co"},
		Patterns: compile(`[?&]lever-(?:source|origin)=`),
	},
	{
		Name:     "Workday",
		Domains:  []string{"myworkdayjobs.com", "myworkday.com", "workday.com"},
		Patterns: compile(`^https?://[^/]+\.wd\d+\.myworkday(?:jobs)?\.com/`),
	},
	{
		Name:    "Ashby",
		Domains: []string{"ashbyhq.com"},
	},
	{
		Name:    "SmartRecruiters",
		Domains: []string{"smartrecruiters.com"},
	},
	{
		Name:     "iCIMS",
		Domains:  []string{"icims.com"},
		Patterns: compile(`^https?://careers-[^/]+\.icims\.com/`),
	},
	{
		Name:    "BambooHR",
		Domains: []string{"bamboohr.com"},
	},
	{
		Name:    "Jobvite",
		Domains: []string{"jobvite.com"},
	},
	{
		Name:     "Taleo",
		Domains:  []string{"taleo.net"},
		Patterns: compile(`/careersection/`),
	},
	{
		Name:    "Workable",
		Domains: []string{"workable.com"},
	},
	{
		Name:    "Teamtailor",
		Domains: []string{"teamtailor.com"},
	},
	{
		Name:    "Recruitee",
		Domains: []string{"recruitee.com"},
	},
}

// 候选人页面优先于职位页面匹配
var (
	candidatePaths = compile(`/(?:todo|can|candidates?|people|applications?|applicants?)/([A-Za-z0-9_-]+)(?:/|$)`)
	positionPaths  = compile(`/(?:positions?|jobs?|postings?|requisitions?|openings?)/([A-Za-z0-9_-]+)(?:/|$)`)
)

func compile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile(e))
	}
	return out
}
