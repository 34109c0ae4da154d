package storage

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// newID returns prefix + base36 millis + a short random suffix. Not
// collision-checked and not suitable for anything security related.
func newID(prefix string, now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:7]
	return prefix + strconv.FormatInt(now.UnixMilli(), 36) + "-" + suffix
}
