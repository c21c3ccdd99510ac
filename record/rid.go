package record

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	NoContainer = -1
	NoPosition  = -1

	// FirstTemporaryPosition is the first position handed out to a record
	// that has not been persisted yet. Next ones go downwards.
	FirstTemporaryPosition = -2
)

// RID identifies a record inside a container. Records and index entries
// share *RID pointers so an identity rewrite is visible everywhere at once.
type RID struct {
	Container int32 `json:"container"`
	Position  int64 `json:"position"`
}

func NewRID(container int32, position int64) *RID {
	return &RID{Container: container, Position: position}
}

// EmptyRID returns an identity that has not been assigned yet.
func EmptyRID() *RID {
	return &RID{Container: NoContainer, Position: NoPosition}
}

func (r RID) IsValid() bool {
	return r.Position != NoPosition
}

func (r RID) IsTemporary() bool {
	return r.Position <= FirstTemporaryPosition
}

func (r RID) IsPersistent() bool {
	return r.Position >= 0
}

// Set mutates the identity in place.
func (r *RID) Set(to RID) {
	r.Container = to.Container
	r.Position = to.Position
}

func (r RID) Copy() *RID {
	return &r
}

func (r RID) String() string {
	return "#" + strconv.FormatInt(int64(r.Container), 10) + ":" + strconv.FormatInt(r.Position, 10)
}

// Parse accepts "#12:3" and "12:3".
func Parse(s string) (RID, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return RID{}, fmt.Errorf("malformed rid '%s'", s)
	}
	container, err := strconv.ParseInt(parts[0], 10, 32)
	if err != nil {
		return RID{}, fmt.Errorf("malformed rid container '%s': %w", parts[0], err)
	}
	position, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return RID{}, fmt.Errorf("malformed rid position '%s': %w", parts[1], err)
	}
	return RID{Container: int32(container), Position: position}, nil
}

func Compare(a, b RID) int {
	switch {
	case a.Container < b.Container:
		return -1
	case a.Container > b.Container:
		return 1
	case a.Position < b.Position:
		return -1
	case a.Position > b.Position:
		return 1
	}
	return 0
}
