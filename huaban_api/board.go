package huaban_api

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// BoardID identifies a board (the collection being downloaded).
type BoardID string

// jsonBoard represents a board in the raw JSON API response
type jsonBoard struct {
	BoardID     int64   `json:"board_id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	PinCount    int     `json:"pin_count"`
	FollowCount int     `json:"follow_count"`
	UpdatedAt   int64   `json:"updated_at"`
	User        struct {
		Username string `json:"username"`
	} `json:"user"`
}

// Board is a read-only snapshot of a board's metadata with Go types.
type Board struct {
	ID          BoardID
	Title       string
	Description *string // nil when the board has no description
	PinCount    int
	OwnerName   string
	FollowCount int
	UpdatedAt   time.Time

	raw []byte // Stores the original raw JSON response
}

// toBoard converts the JSON representation to the Go friendly one.
func (j *jsonBoard) toBoard(id BoardID) *Board {
	var desc *string
	if j.Description != nil && *j.Description != "" {
		d := *j.Description
		desc = &d
	}
	return &Board{
		ID:          id,
		Title:       j.Title,
		Description: desc,
		PinCount:    j.PinCount,
		OwnerName:   j.User.Username,
		FollowCount: j.FollowCount,
		UpdatedAt:   time.Unix(j.UpdatedAt, 0),
	}
}

// Raw returns the unmodified JSON response the board was decoded from.
func (b *Board) Raw() []byte {
	return b.raw
}

// Summary renders the board metadata as a short multi-line text block.
func (b *Board) Summary() string {
	desc := "(none)"
	if b.Description != nil {
		desc = *b.Description
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Title:       %s\n", b.Title)
	fmt.Fprintf(&sb, "Description: %s\n", desc)
	fmt.Fprintf(&sb, "Pins:        %d\n", b.PinCount)
	fmt.Fprintf(&sb, "Owner:       %s\n", b.OwnerName)
	fmt.Fprintf(&sb, "Followers:   %d\n", b.FollowCount)
	fmt.Fprintf(&sb, "Updated:     %s\n", b.UpdatedAt.Format("2006-01-02 15:04:05"))
	return sb.String()
}

// Board retrieves the metadata of a board. It issues exactly one request and
// does not retry.
// Parameters:
//   - ctx: Context bounding the request
//   - id: The board to describe
//
// Returns:
//   - *Board: Metadata snapshot
//   - error: NetworkError if there was a network or request error
//   - error: ApiError if the response has no "board" object
func (s *Session) Board(ctx context.Context, id BoardID) (*Board, error) {
	u := buildUrl(s.baseURL, "boards/"+string(id), map[string]string{
		"fields": boardFields,
	})

	var jb jsonBoard
	body, err := s.getJSONField(ctx, "get board", u, "board", &jb)
	if err != nil {
		return nil, err
	}

	board := jb.toBoard(id)
	board.raw = body
	return board, nil
}
