package session

import (
	"encoding/json"
	"fmt"
)

type authRecord struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token,omitempty"`
	Identity     Identity `json:"identity"`
}

type record struct {
	Auth       *authRecord `json:"auth,omitempty"`
	Flashes    []Flash     `json:"flashes,omitempty"`
	RememberMe bool        `json:"remember_me,omitempty"`
}

func encode(s *Session) ([]byte, error) {
	r := record{Flashes: s.flashes, RememberMe: s.rememberMe}
	if s.auth != nil {
		r.Auth = &authRecord{
			AccessToken:  s.auth.accessToken,
			RefreshToken: s.auth.refreshToken,
			Identity:     s.auth.identity,
		}
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("session: encode: %w", err)
	}
	return b, nil
}

// decode rebuilds a stored session. A stored auth block that violates the
// token/identity invariant is dropped and reported via invalidAuth.
func decode(id string, b []byte) (s *Session, invalidAuth bool, err error) {
	var r record
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, false, fmt.Errorf("session: decode: %w", err)
	}
	s = &Session{id: id, flashes: r.Flashes, rememberMe: r.RememberMe}
	if r.Auth != nil {
		if r.Auth.AccessToken == "" || r.Auth.Identity.validate() != nil {
			s.dirty = true
			return s, true, nil
		}
		s.auth = &auth{
			accessToken:  r.Auth.AccessToken,
			refreshToken: r.Auth.RefreshToken,
			identity:     r.Auth.Identity.normalized(),
		}
	}
	return s, false, nil
}
