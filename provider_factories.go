package sociallinks

import (
	"github.com/goliatone/go-social-links/core"
	"github.com/goliatone/go-social-links/providers"
	"github.com/goliatone/go-social-links/providers/google/youtube"
	"github.com/goliatone/go-social-links/providers/meta/facebook"
	"github.com/goliatone/go-social-links/providers/meta/instagram"
	"github.com/goliatone/go-social-links/providers/tiktok"
	"github.com/goliatone/go-social-links/providers/twitter"
)

// BuiltInClientBuilders returns the builder for every supported platform.
func BuiltInClientBuilders() map[core.Platform]providers.ClientBuilder {
	return map[core.Platform]providers.ClientBuilder{
		core.PlatformFacebook:  facebook.Builder,
		core.PlatformInstagram: instagram.Builder,
		core.PlatformTwitter:   twitter.Builder,
		core.PlatformTikTok:    tiktok.Builder,
		core.PlatformYouTube:   youtube.Builder,
	}
}

// NewClientFactory returns a factory with all built-in platforms registered.
// Builders passed through providers.WithClientBuilder take precedence.
func NewClientFactory(opts ...providers.FactoryOption) (*providers.Factory, error) {
	factory := providers.NewFactory(opts...)
	overridden := map[core.Platform]bool{}
	for _, platform := range factory.Platforms() {
		overridden[platform] = true
	}
	builders := BuiltInClientBuilders()
	for _, platform := range core.Platforms() {
		builder, ok := builders[platform]
		if !ok || overridden[platform] {
			continue
		}
		if err := factory.Register(platform, builder); err != nil {
			return nil, err
		}
	}
	return factory, nil
}
