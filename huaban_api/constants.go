package huaban_api

import "time"

// Default constants for the huaban web API
const (
	// DefaultBaseURL is the root of the JSON API.
	DefaultBaseURL = "https://huaban.com/v3"

	// DefaultImageBaseURL is the CDN host serving pin assets by key.
	DefaultImageBaseURL = "https://gd-hbimg.huaban.com"

	// PageSize is the number of pins requested per page. A page shorter
	// than this is treated as the last one.
	PageSize = 100

	// DefaultPageDelayMin and DefaultPageDelayMax bound the randomized pause
	// between two page requests.
	DefaultPageDelayMin = 400 * time.Millisecond
	DefaultPageDelayMax = 1000 * time.Millisecond

	// DefaultTimeout is the per-request timeout of the default HTTP client.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent is sent when no identity provider is configured.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

const (
	siteOrigin   = "https://huaban.com"
	acceptHeader = "application/json, text/plain, */*"

	boardFields = "board:BOARD_DETAIL"
	pinsFields  = "pins:PIN|board:BOARD_DETAIL|check"
)
