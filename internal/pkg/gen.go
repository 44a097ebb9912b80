package pkg

import "github.com/google/uuid"

// GenerateGameID - mints a unique identifier for a new game instance.
func GenerateGameID() string {
	return uuid.NewString()
}

// GenerateNewSessionID - mints a unique identifier for a new player session.
func GenerateNewSessionID() string {
	return uuid.NewString()
}
