package huaban_api

import (
	"context"
	"io"
)

// FetchAsset opens a byte stream for the asset stored under key.
// The credential is not forwarded to the CDN.
// Parameters:
//   - ctx: Context bounding the whole transfer, including reads of the body
//   - key: The asset key of a pin
//
// Returns:
//   - io.ReadCloser: The asset body; the caller must close it
//   - int64: Content length announced by the server, -1 if unknown
//   - error: NetworkError on transport failure or a non-2xx status
func (s *Session) FetchAsset(ctx context.Context, key AssetKey) (io.ReadCloser, int64, error) {
	u := buildUrl(s.imageBaseURL, string(key), nil)
	res, err := s.httpGet(ctx, "fetch asset", u, false)
	if err != nil {
		return nil, 0, err
	}
	return res.Body, res.ContentLength, nil
}
