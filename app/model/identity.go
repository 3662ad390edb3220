package model

// Identity describes the bot itself.
type Identity struct {
	// UserID is the transport user id of the bot
	UserID string
	// AgentID is the stable runtime id derived from UserID
	AgentID string
	// Handle is the @username without the @
	Handle string
	Name   string
}
