// CLAUDE:SUMMARY bluemonday policy used to clean untrusted markup before it is parsed.
package htmldoc

import (
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policyOnce sync.Once
	policy     *bluemonday.Policy
)

// Policy returns the shared sanitising policy: bluemonday's UGC policy with
// class and data-* attributes allowed, so existing audit trails survive.
func Policy() *bluemonday.Policy {
	policyOnce.Do(func() {
		p := bluemonday.UGCPolicy()
		p.AllowDataAttributes()
		p.AllowAttrs("class").Globally()
		policy = p
	})
	return policy
}

// Sanitize strips scripts, event handlers and other unsafe markup.
func Sanitize(markup string) string {
	return Policy().Sanitize(markup)
}
