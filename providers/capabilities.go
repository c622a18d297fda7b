package providers

import "github.com/goliatone/go-social-links/core"

var capabilityMatrix = map[core.Platform]core.PlatformCapabilities{
	core.PlatformFacebook: {
		Platform:            core.PlatformFacebook,
		SupportsRevoke:      true,
		SupportsProfileByID: true,
		Follow:              true,
		Like:                true,
		Comment:             true,
		VideoEngagement:     true,
	},
	core.PlatformInstagram: {
		Platform:        core.PlatformInstagram,
		Comment:         true,
		VideoEngagement: true,
	},
	core.PlatformTwitter: {
		Platform:             core.PlatformTwitter,
		SupportsRefreshToken: true,
		SupportsRevoke:       true,
		SupportsProfileByID:  true,
		Follow:               true,
		Like:                 true,
		Comment:              true,
		VideoEngagement:      true,
	},
	core.PlatformTikTok: {
		Platform:             core.PlatformTikTok,
		SupportsRefreshToken: true,
		SupportsRevoke:       true,
	},
	core.PlatformYouTube: {
		Platform:             core.PlatformYouTube,
		SupportsRefreshToken: true,
		SupportsRevoke:       true,
		SupportsProfileByID:  true,
		Subscription:         true,
		Like:                 true,
		VideoEngagement:      true,
	},
}

// Capabilities returns the static descriptor for a platform.
func Capabilities(platform core.Platform) (core.PlatformCapabilities, bool) {
	caps, ok := capabilityMatrix[platform]
	return caps, ok
}

// AllCapabilities lists descriptors in canonical platform order.
func AllCapabilities() []core.PlatformCapabilities {
	out := make([]core.PlatformCapabilities, 0, len(capabilityMatrix))
	for _, platform := range core.Platforms() {
		if caps, ok := capabilityMatrix[platform]; ok {
			out = append(out, caps)
		}
	}
	return out
}
