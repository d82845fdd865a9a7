package device

import (
	"strings"

	"github.com/mssola/useragent"
)

type Info struct {
	Browser string `json:"browser"`
	OS      string `json:"os"`
	Class   string `json:"class"`
}

// Describe classifies a User-Agent header.
func Describe(ua string) Info {
	if ua == "" {
		return Info{Browser: "Other", Class: "Desktop"}
	}
	parsed := useragent.New(ua)
	browser, _ := parsed.Browser()
	if browser == "" {
		browser = "Other"
	}
	info := Info{Browser: browser, OS: parsed.OSInfo().Name, Class: "Desktop"}

	lower := strings.ToLower(ua)
	switch {
	case parsed.Bot():
		info.Class = "Bot"
	case strings.Contains(lower, "ipad") || (strings.Contains(lower, "android") && !strings.Contains(lower, "mobile")):
		info.Class = "Tablet"
	case parsed.Mobile():
		info.Class = "Mobile"
	}
	return info
}
