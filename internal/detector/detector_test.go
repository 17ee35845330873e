package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"atsassist/pkg/domain"
)

func TestDetectATSPlatform(t *testing.T) {
	tests := []struct {
		url      string
		expected string
	}{
		{"https://boards.greenhouse.io/x", "Greenhouse"},
		{"https://app.greenhouse.io/people/123", "Greenhouse"},
		{"HTTPS://BOARDS.GREENHOUSE.IO/ACME", "Greenhouse"},
		{"https://careers.acme.com/openings?gh_jid=4411", "Greenhouse"},
		{"https://jobs.lever.co/acme/abc", "Lever"},
		{"https://careers.acme.com/apply?lever-source=linkedin", "Lever"},
		{"https://acme.wd5.myworkdayjobs.com/en-US/External", "Workday"},
		{"https://impl.workday.com/acme/d/home.htmld", "Workday"},
		{"https://jobs.ashbyhq.com/acme", "Ashby"},
		{"https://careers-acme.icims.com/jobs/1/job", "iCIMS"},
		{"https://acme.taleo.net/careersection/2/jobdetail.ftl", "Taleo"},
		{"https://apply.workable.com/acme/", "Workable"},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			p := DetectATSPlatform(tt.url)
			if assert.NotNil(t, p) {
				assert.Equal(t, tt.expected, p.Name)
			}
		})
	}
}

func TestDetectATSPlatformNoMatch(t *testing.T) {
	for _, u := range []string{
		"https://example.com/",
		"https://news.ycombinator.com/item?id=1",
		"",
		"not a url",
	} {
		assert.Nil(t, DetectATSPlatform(u), u)
	}
}

func TestDetectATSPlatformTableOrder(t *testing.T) {
	// 同时包含两个平台域名时取表中靠前者
	p := DetectATSPlatform("https://jobs.lever.co/redirect?to=boards.greenhouse.io")
	if assert.NotNil(t, p) {
		assert.Equal(t, "Greenhouse", p.Name)
	}
}

func TestDetectPageType(t *testing.T) {
	tests := []struct {
		url      string
		expected domain.PageType
	}{
		{"https://ats.example.com/todo/12345", domain.PageCandidate},
		{"https://ats.example.com/can/67890", domain.PageCandidate},
		{"https://ats.example.com/can/67890/notes", domain.PageCandidate},
		{"https://app.greenhouse.io/people/998?application_id=1", domain.PageCandidate},
		{"https://ats.example.com/jobs/12/candidates/34", domain.PageCandidate},
		{"https://boards.greenhouse.io/acme/jobs/4411", domain.PagePosition},
		{"https://ats.example.com/positions/abc-1", domain.PagePosition},
		{"https://ats.example.com/todo", domain.PageNone},
		{"https://ats.example.com/settings/profile", domain.PageNone},
		{"https://jobs.lever.co/acme", domain.PageNone},
		{"https://app.example-ats.com/#/todo/12345", domain.PageCandidate},
		{"https://app.example-ats.com/#/can/67890", domain.PageCandidate},
		{"https://app.example-ats.com/index.html#/candidates/42", domain.PageCandidate},
		{"https://app.example-ats.com/#/candidates/42?tab=notes", domain.PageCandidate},
		{"https://app.example-ats.com/#/postings/7", domain.PagePosition},
		{"https://app.example-ats.com/jobs/7#/people/9", domain.PageCandidate},
		{"https://app.example-ats.com/#/settings", domain.PageNone},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectPageType(tt.url))
		})
	}
}

func TestDetect(t *testing.T) {
	ctx := Detect("https://app.greenhouse.io/people/998#activity")
	assert.Equal(t, "Greenhouse", ctx.Platform)
	assert.Equal(t, domain.PageCandidate, ctx.PageType)
	assert.Equal(t, "998", ctx.EntityID)
	assert.NotZero(t, ctx.DetectedAt)

	ctx = Detect("https://app.example-ats.com/#/todo/12345")
	assert.Equal(t, domain.PageCandidate, ctx.PageType)
	assert.Equal(t, "12345", ctx.EntityID)

	ctx = Detect("https://example.com/about")
	assert.Empty(t, ctx.Platform)
	assert.Equal(t, domain.PageNone, ctx.PageType)
	assert.Empty(t, ctx.EntityID)
}

func TestPlatformsIsCopy(t *testing.T) {
	ps := Platforms()
	ps[0] = nil
	assert.NotNil(t, Platforms()[0])
}
