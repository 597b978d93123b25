package personalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dealerdesk/lead-engine/internal/model"
)

// Dealership is the static identity injected into every rendered message.
type Dealership struct {
	Name           string
	Phone          string
	Address        string
	UnsubscribeURL string
}

// Engine substitutes {{token}} placeholders in outbound message bodies.
// Unknown tokens are left as literal text so a template typo never blocks a
// send.
type Engine struct {
	dealership Dealership
	now        func() time.Time
}

func NewEngine(dealership Dealership) *Engine {
	return &Engine{
		dealership: dealership,
		now:        time.Now,
	}
}

var tokenPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)

// Render replaces every known token. Extra values override the derived
// recipient tokens, which lets job payloads pre-bind personalization data.
func (e *Engine) Render(template string, customer *model.Customer, extra map[string]string) string {
	if template == "" || !strings.Contains(template, "{{") {
		return template
	}

	values := e.tokenValues(customer)
	for k, v := range extra {
		values[k] = v
	}

	return tokenPattern.ReplaceAllStringFunc(template, func(match string) string {
		token := tokenPattern.FindStringSubmatch(match)[1]
		if v, ok := values[token]; ok {
			return v
		}
		return match
	})
}

func (e *Engine) tokenValues(c *model.Customer) map[string]string {
	values := map[string]string{
		"dealershipName":    e.dealership.Name,
		"dealershipPhone":   e.dealership.Phone,
		"dealershipAddress": e.dealership.Address,
		"currentYear":       strconv.Itoa(e.now().Year()),
	}
	if c == nil {
		return values
	}

	values["firstName"] = c.FirstName
	values["lastName"] = c.LastName
	values["fullName"] = c.FullName()
	values["email"] = c.Email
	values["phone"] = c.Phone
	if e.dealership.UnsubscribeURL != "" {
		values["unsubscribeUrl"] = fmt.Sprintf("%s?cid=%d", e.dealership.UnsubscribeURL, c.ID)
	}
	return values
}
