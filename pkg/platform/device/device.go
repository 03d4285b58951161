// Package device classifies the client that submitted a request.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

// Channel is the submission channel recorded on citizen reports.
type Channel string

const (
	ChannelWeb     Channel = "web"
	ChannelMobile  Channel = "mobile"
	ChannelAPI     Channel = "api"
	ChannelUnknown Channel = "unknown"
)

// ChannelFor derives the channel from a User-Agent header. Browsers on
// phones and tablets are mobile, other browsers are web, and scripted
// clients (curl, SDKs, bots) are api.
func ChannelFor(userAgent string) Channel {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return ChannelUnknown
	}

	ua := useragent.New(userAgent)
	if ua.Bot() {
		return ChannelAPI
	}
	if ua.Mobile() {
		return ChannelMobile
	}
	if browser, _ := ua.Browser(); browser == "" || !strings.HasPrefix(userAgent, "Mozilla/") {
		return ChannelAPI
	}
	return ChannelWeb
}

// DisplayName renders "Browser on OS" for audit logs.
func DisplayName(userAgent string) string {
	if userAgent == "" {
		return "Unknown Device"
	}

	ua := useragent.New(userAgent)
	browser, _ := ua.Browser()
	os := ua.OS()
	if ua.Mobile() && ua.Platform() != "" {
		os = ua.Platform()
	}
	if browser == "" {
		browser = "Unknown Browser"
	}
	if os == "" {
		os = "Unknown OS"
	}
	return strings.TrimSpace(browser + " on " + os)
}
