package huaban_api

import (
	"context"
	"fmt"
	"iter"
	"strconv"
)

// PinID identifies a pin. It doubles as the pagination cursor: a page
// request with max=<id> returns pins older than that pin.
type PinID int64

// AssetKey is the opaque storage key of a pin's asset on the CDN.
type AssetKey string

// jsonPin represents a pin in the raw JSON API response
type jsonPin struct {
	PinID   int64   `json:"pin_id"`
	RawText *string `json:"raw_text"`
	Source  *string `json:"source"`
	File    struct {
		Key  string `json:"key"`
		Type string `json:"type"`
	} `json:"file"`
}

// Pin is one downloadable item of a board. It is immutable once decoded.
type Pin struct {
	ID       PinID
	AssetKey AssetKey
	MimeType string
	RawText  *string // Display text, nil when absent or null
	Source   *string // Origin label, nil when absent or empty
}

func clone(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}

func (j *jsonPin) toPin() Pin {
	return Pin{
		ID:       PinID(j.PinID),
		AssetKey: AssetKey(j.File.Key),
		MimeType: j.File.Type,
		RawText:  clone(j.RawText),
		Source:   nonEmpty(j.Source),
	}
}

// Label returns the caption shown next to a pin: its text followed by the
// source in brackets when one is known.
func (p Pin) Label() string {
	text := "(no description)"
	if p.RawText != nil && *p.RawText != "" {
		text = *p.RawText
	}
	if p.Source != nil {
		return fmt.Sprintf("%s [%s]", text, *p.Source)
	}
	return text
}

// Page is the ordered list of pins returned by one request.
type Page []Pin

// NextCursor returns the cursor for the page following p, or 0 if p is empty.
func (p Page) NextCursor() PinID {
	if len(p) == 0 {
		return 0
	}
	return p[len(p)-1].ID
}

// fetchPage requests one page of pins older than cursor (all pins from the
// newest one if cursor is 0).
func (s *Session) fetchPage(ctx context.Context, id BoardID, cursor PinID) (Page, error) {
	params := map[string]string{
		"limit":  strconv.Itoa(PageSize),
		"fields": pinsFields,
	}
	if cursor != 0 {
		params["max"] = strconv.FormatInt(int64(cursor), 10)
	}
	u := buildUrl(s.baseURL, "boards/"+string(id)+"/pins", params)

	var raw []jsonPin
	if _, err := s.getJSONField(ctx, "list pins", u, "pins", &raw); err != nil {
		return nil, err
	}
	page := make(Page, len(raw))
	for i := range raw {
		page[i] = raw[i].toPin()
	}
	return page, nil
}

// Pins returns a lazy sequence over the pages of a board, in the API's
// native (newest first) order. No request is issued until the sequence is
// ranged over, and a consumer that stops early incurs no further requests.
//
// The sequence ends after an empty page, or after yielding a page shorter
// than PageSize. A randomized pause separates successive requests. On error
// the sequence yields (nil, err) once and stops; pages already yielded are
// the caller's to keep or drop.
func (s *Session) Pins(ctx context.Context, id BoardID) iter.Seq2[Page, error] {
	return func(yield func(Page, error) bool) {
		var cursor PinID
		for first := true; ; first = false {
			if !first {
				if err := s.sleeper.Sleep(ctx, s.pageDelay()); err != nil {
					yield(nil, err)
					return
				}
			}
			page, err := s.fetchPage(ctx, id, cursor)
			if err != nil {
				yield(nil, err)
				return
			}
			if len(page) == 0 {
				return
			}
			if !yield(page, nil) {
				return
			}
			if len(page) < PageSize {
				return
			}
			cursor = page.NextCursor()
		}
	}
}

// AllPins drains Pins into a single slice preserving page-arrival order.
// Returns:
//   - []Pin: Every pin of the board
//   - error: NetworkError or ApiError from any page; pins fetched so far are discarded
//   - error: ApiError if a page repeats a pin already seen, which means the
//     API no longer honours the max cursor
func (s *Session) AllPins(ctx context.Context, id BoardID) ([]Pin, error) {
	var all []Pin
	seen := make(map[PinID]struct{})
	for page, err := range s.Pins(ctx, id) {
		if err != nil {
			return nil, err
		}
		for _, pin := range page {
			if _, dup := seen[pin.ID]; dup {
				return nil, ApiError(fmt.Sprintf("list pins: pin %d returned twice, cursor not advancing", pin.ID))
			}
			seen[pin.ID] = struct{}{}
			all = append(all, pin)
		}
	}
	return all, nil
}
