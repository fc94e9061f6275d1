package domain

import "time"

// ProviderIdentity holds the stable profile fields of a connected provider account.
type ProviderIdentity struct {
	ProviderUserID string `bson:"provider_user_id" json:"id"`
	Email          string `bson:"email,omitempty"  json:"email,omitempty"`
	DisplayName    string `bson:"display_name,omitempty" json:"name,omitempty"`
}

// User is one application user together with the provider identities linked to it.
type User struct {
	ID               string            `bson:"_id"                        json:"id"`
	ApplicationLogin string            `bson:"application_login"          json:"application_login"`
	PasswordHash     string            `bson:"password_hash"              json:"-"`
	TodoistIdentity  *ProviderIdentity `bson:"todoist_identity,omitempty" json:"todoist_identity,omitempty"`
	GoogleIdentity   *ProviderIdentity `bson:"google_identity,omitempty"  json:"google_identity,omitempty"`
	CreatedAt        time.Time         `bson:"created_at"                 json:"created_at"`
	UpdatedAt        time.Time         `bson:"updated_at"                 json:"updated_at"`
}

// Identity returns the identity attached for the provider, or nil.
func (u *User) Identity(p Provider) *ProviderIdentity {
	switch p {
	case ProviderTodoist:
		return u.TodoistIdentity
	case ProviderGoogle:
		return u.GoogleIdentity
	}
	return nil
}

// AttachIdentity sets the identity of a single provider. Identities of other
// providers are left untouched.
func (u *User) AttachIdentity(p Provider, identity ProviderIdentity) {
	id := identity
	switch p {
	case ProviderTodoist:
		u.TodoistIdentity = &id
	case ProviderGoogle:
		u.GoogleIdentity = &id
	}
}

// DetachIdentity clears the identity of a single provider.
func (u *User) DetachIdentity(p Provider) {
	switch p {
	case ProviderTodoist:
		u.TodoistIdentity = nil
	case ProviderGoogle:
		u.GoogleIdentity = nil
	}
}

// ConnectedProviders returns the providers that currently have an identity attached.
func (u *User) ConnectedProviders() []Provider {
	var out []Provider
	for _, p := range Providers {
		if u.Identity(p) != nil {
			out = append(out, p)
		}
	}
	return out
}

// Anonymize drops every provider identity. The application login survives.
func (u *User) Anonymize() {
	u.TodoistIdentity = nil
	u.GoogleIdentity = nil
}
