package firestore

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	domain "github.com/printmesh/api/internal/domain"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

var errBadPageToken = errors.New("firestore: malformed page token")

// pageCursor pins a list position to a creation timestamp plus document ID so
// paging stays stable under equal timestamps.
type pageCursor struct {
	createdAt time.Time
	id        string
}

func encodePageCursor(c pageCursor) string {
	raw := fmt.Sprintf("%d|%s", c.createdAt.UnixNano(), c.id)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodePageCursor(token string) (pageCursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return pageCursor{}, errBadPageToken
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 || parts[1] == "" {
		return pageCursor{}, errBadPageToken
	}
	nanos, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return pageCursor{}, errBadPageToken
	}
	return pageCursor{createdAt: time.Unix(0, nanos).UTC(), id: parts[1]}, nil
}

func clampPageSize(p domain.Pagination) int {
	size := p.PageSize
	if size <= 0 {
		return defaultPageSize
	}
	if size > maxPageSize {
		return maxPageSize
	}
	return size
}
