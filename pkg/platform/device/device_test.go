package device

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	iphoneSafari = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	desktopChrome = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

func TestChannelFor(t *testing.T) {
	assert.Equal(t, ChannelMobile, ChannelFor(iphoneSafari))
	assert.Equal(t, ChannelWeb, ChannelFor(desktopChrome))
	assert.Equal(t, ChannelAPI, ChannelFor("curl/8.4.0"))
	assert.Equal(t, ChannelUnknown, ChannelFor("   "))
}

func TestDisplayName(t *testing.T) {
	name := DisplayName(desktopChrome)
	assert.Contains(t, name, "Chrome on ")
	assert.Equal(t, strings.TrimSpace(name), name)
	assert.Contains(t, DisplayName(iphoneSafari), "iPhone")
	assert.Equal(t, "Unknown Device", DisplayName(""))
}
