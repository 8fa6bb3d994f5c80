package model

// AccountID identifies a mailbox account such as "church" or "personal".
// It is NOT the logged-in user: two different logins must observe the
// same state for the same account, so stores key by AccountID only.
type AccountID string

func (a AccountID) String() string { return string(a) }

// UserIdentity is the authenticated caller extracted from the bearer
// token. It is deliberately a distinct type from AccountID so that it
// can never be used as a store key by accident.
type UserIdentity string

func (u UserIdentity) String() string { return string(u) }
