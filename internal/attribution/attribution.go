package attribution

import (
	"fmt"
	"net/url"

	"github.com/solarmarket/creative-rotation/internal/creative"
)

// RedirectURL appends the creative's campaign parameters to its target URL.
// Existing query parameters are kept; empty attribution fields are omitted.
func RedirectURL(target string, at creative.Attribution) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("cannot parse target url, %w", err)
	}

	query := u.Query()

	for key, value := range map[string]string{
		"utm_source":   at.Source,
		"utm_medium":   at.Medium,
		"utm_campaign": at.Campaign,
		"utm_term":     at.Term,
		"utm_content":  at.Content,
	} {
		if value != "" {
			query.Set(key, value)
		}
	}

	u.RawQuery = query.Encode()

	return u.String(), nil
}
