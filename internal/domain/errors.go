package domain

import "errors"

var (
	ErrInvalidID        = errors.New("invalid id")
	ErrInvalidName      = errors.New("invalid name")
	ErrInvalidItemName  = errors.New("invalid item name")
	ErrInvalidDirection = errors.New("invalid direction")
	ErrInvalidQuantity  = errors.New("invalid quantity")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidStock     = errors.New("invalid stock")
	ErrInvalidCategory  = errors.New("invalid category")
)
