package services

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewReference returns a human-readable reference of the form
// PREFIX-YYYYMMDD-XXXXXX, dated in the zone of at.
func NewReference(prefix string, at time.Time) string {
	id := uuid.New()
	return prefix + "-" + at.Format("20060102") + "-" + strings.ToUpper(hex.EncodeToString(id[:3]))
}
