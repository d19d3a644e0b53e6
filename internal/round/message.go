package round

import "fmt"

// PeerError is returned when the message of a peer cannot be received or decoded.
type PeerError struct {
	From string
	Err  error
}

func (e *PeerError) Error() string {
	return fmt.Sprintf("message from %s: %v", e.From, e.Err)
}

func (e *PeerError) Unwrap() error {
	return e.Err
}
