package game

import "github.com/google/uuid"

// UniqueIdGenerator produces opaque unique identifiers for sessions and
// players.
type UniqueIdGenerator interface {
	Generate() string
}

type uuidGenerator struct{}

func NewIdGen() UniqueIdGenerator { return uuidGenerator{} }

func (uuidGenerator) Generate() string { return uuid.NewString() }
