package session

// Disposition is what the supervisor does after a connection closes.
type Disposition int

const (
	// DispositionReconnect removes the entry and connects again at once.
	DispositionReconnect Disposition = iota
	// DispositionStop removes the entry and keeps the credentials. Used when
	// another device took over or the account is banned, where reconnecting
	// would fight the takeover.
	DispositionStop
	// DispositionLogout removes the entry, erases the credentials and
	// reports the bot as deleted.
	DispositionLogout
)

func (d Disposition) String() string {
	switch d {
	case DispositionStop:
		return "stop"
	case DispositionLogout:
		return "logout"
	default:
		return "reconnect"
	}
}

// DispositionFor applies the disconnect policy to a status code.
func DispositionFor(code StatusCode) Disposition {
	switch code {
	case StatusConnectionReplaced, StatusForbidden:
		return DispositionStop
	case StatusLoggedOut:
		return DispositionLogout
	default:
		return DispositionReconnect
	}
}
