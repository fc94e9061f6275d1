// Package session implements the server-side session stores. Sessions are
// kept as JSON documents so both backends share one encoding.
package session

import (
	"encoding/json"
	"fmt"

	"go.pilab.hu/focusboard/domain"
)

func encode(sess *domain.Session) ([]byte, error) {
	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("session: failed to marshal: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*domain.Session, error) {
	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("session: failed to unmarshal: %w", err)
	}
	if sess.Identities == nil {
		sess.Identities = make(map[domain.Provider]domain.ProviderIdentity)
	}
	if sess.OAuthStates == nil {
		sess.OAuthStates = make(map[domain.Provider]string)
	}
	return &sess, nil
}
