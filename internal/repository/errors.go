package repository

import "errors"

// Storage-level constraint signals. Services decide whether to retry or reject.
var (
	ErrDuplicateCaseNumber = errors.New("case number already allocated")
	ErrTheatreDoubleBooked = errors.New("theatre window overlaps a scheduled case")
	ErrStaleVersion        = errors.New("row version changed")
)
