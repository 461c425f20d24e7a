package session

import "sync"

// Session holds the application credentials and the mutable login
// state for one client instance. It is passed down to every component
// that needs to sign requests instead of living in package globals, so
// two clients in one process never share tokens.
type Session struct {
	mu sync.RWMutex

	applicationKey string
	clientKey      string

	sessionToken string
	userID       string
}

func New(applicationKey, clientKey string) *Session {
	return &Session{
		applicationKey: applicationKey,
		clientKey:      clientKey,
	}
}

func (s *Session) ApplicationKey() string {
	return s.applicationKey
}

func (s *Session) ClientKey() string {
	return s.clientKey
}

// SessionToken returns the current login token, empty when logged out.
func (s *Session) SessionToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionToken
}

func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// SetLogin records the token and user id returned by login or signup.
func (s *Session) SetLogin(token, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionToken = token
	s.userID = userID
}

// Clear drops the login state. Application credentials stay.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionToken = ""
	s.userID = ""
}
