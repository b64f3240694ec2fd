// SPDX-License-Identifier: Apache-2.0

package models

import "github.com/google/uuid"

// Identity is the already-resolved caller identity handed to the core by the
// authentication boundary. The core never sees credentials, only this record.
type Identity struct {
	UserID           uuid.UUID
	Email            string
	Groups           []string
	Source           IdentitySource
	DeviceID         *uuid.UUID
	ServiceAccountID *uuid.UUID
	Scopes           []string
}

// IsServiceAccount reports whether the caller authenticated with a bearer
// token rather than a human session. Service accounts are read-only and may
// touch only shared server vaults their scopes match.
func (i *Identity) IsServiceAccount() bool {
	return i.ServiceAccountID != nil
}
