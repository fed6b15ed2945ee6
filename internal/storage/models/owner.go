// Package models contains the domain models for the application.
package models

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// OwnerKind tags which identity scheme owns an appointment.
type OwnerKind string

// Owner kinds.
const (
	OwnerNone      OwnerKind = ""
	OwnerLocal     OwnerKind = "local"
	OwnerFederated OwnerKind = "federated"
)

// Owner is the tagged union {LocalAccount(id) | FederatedProfile(id)}.
// Only the field matching Kind is meaningful.
type Owner struct {
	Kind      OwnerKind
	AccountID int64
	ProfileID uuid.UUID
}

// LocalOwner returns an owner backed by a local account.
func LocalOwner(accountID int64) Owner {
	return Owner{Kind: OwnerLocal, AccountID: accountID}
}

// FederatedOwner returns an owner backed by a federated profile.
func FederatedOwner(profileID uuid.UUID) Owner {
	return Owner{Kind: OwnerFederated, ProfileID: profileID}
}

// IsZero reports whether no owner is set.
func (o Owner) IsZero() bool {
	return o.Kind == OwnerNone
}

// Key returns the owner identifier used in topic names and lookups:
// the decimal account id or the profile UUID.
func (o Owner) Key() string {
	switch o.Kind {
	case OwnerLocal:
		return strconv.FormatInt(o.AccountID, 10)
	case OwnerFederated:
		return o.ProfileID.String()
	default:
		return ""
	}
}

// LocalAccountID returns the account id when the owner is a local account.
func (o Owner) LocalAccountID() (int64, bool) {
	if o.Kind != OwnerLocal {
		return 0, false
	}
	return o.AccountID, true
}

func (o Owner) String() string {
	if o.IsZero() {
		return "none"
	}
	return fmt.Sprintf("%s:%s", o.Kind, o.Key())
}

type ownerJSON struct {
	Kind OwnerKind `json:"kind"`
	ID   string    `json:"id"`
}

// MarshalJSON encodes the owner as {"kind": ..., "id": ...}, or null.
func (o Owner) MarshalJSON() ([]byte, error) {
	if o.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(ownerJSON{Kind: o.Kind, ID: o.Key()})
}

// UnmarshalJSON decodes the form produced by MarshalJSON.
func (o *Owner) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = Owner{}
		return nil
	}
	var raw ownerJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Kind {
	case OwnerLocal:
		id, err := strconv.ParseInt(raw.ID, 10, 64)
		if err != nil {
			return fmt.Errorf("owner id %q: %w", raw.ID, err)
		}
		*o = LocalOwner(id)
	case OwnerFederated:
		id, err := uuid.Parse(raw.ID)
		if err != nil {
			return fmt.Errorf("owner id %q: %w", raw.ID, err)
		}
		*o = FederatedOwner(id)
	default:
		return fmt.Errorf("unknown owner kind %q", raw.Kind)
	}
	return nil
}
