package sqlstore

import "github.com/goliatone/go-social-links/core"

var (
	_ core.LinkStore      = (*LinkStore)(nil)
	_ core.LinkRepository = (*txLinkRepository)(nil)
	_ core.LinkStore      = (*CachedLinkStore)(nil)
)
