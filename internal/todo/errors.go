package todo

import "errors"

// ErrEmptyTitle is returned by Add when the trimmed title is empty.
var ErrEmptyTitle = errors.New("todo: title required")

// ErrItemNotFound is returned by Complete/Remove when id does not match
// any item currently in the list.
var ErrItemNotFound = errors.New("todo: item not found")
