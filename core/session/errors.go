package session

import "errors"

// ErrSlotOccupied is returned when a connection arrives while the dock's
// single slot is already taken.
var ErrSlotOccupied = errors.New("dock slot occupied")
