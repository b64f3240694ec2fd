// SPDX-License-Identifier: Apache-2.0

package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/zann-sh/zann/internal/utils"
)

func now() time.Time {
	return time.Now().UTC()
}

func newItemID() uuid.UUID {
	return utils.NewUUID()
}
