package render

import (
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policyOnce sync.Once
	policy     *bluemonday.Policy
)

func sanitizePolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.UGCPolicy()
		policy.RequireNoFollowOnLinks(true)
		policy.AddTargetBlankToFullyQualifiedLinks(true)
	})
	return policy
}

// Sanitize strips anything from rendered markup that is unsafe to embed in
// a page. Call it at the display boundary, after Markdown.Render.
func Sanitize(markup string) string {
	return sanitizePolicy().Sanitize(markup)
}
