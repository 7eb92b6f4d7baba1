package session

import (
	cryptorand "crypto/rand"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	sessionNameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9\-]`)

	entropyMu   sync.Mutex
	ulidEntropy = ulid.Monotonic(cryptorand.Reader, 0)
)

// GenerateSessionID returns a unique session id prefixed with a sanitized
// form of base. Session ids name the per-run log file.
func GenerateSessionID(base string) string {
	return generateSessionIDAt(base, time.Now())
}

func generateSessionIDAt(base string, t time.Time) string {
	base = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(base), " ", "-"))
	base = sessionNameSanitizer.ReplaceAllString(base, "-")
	base = strings.Trim(base, "-")
	if base == "" {
		base = "session"
	}

	entropyMu.Lock()
	id := ulid.MustNew(ulid.Timestamp(t), ulidEntropy).String()
	entropyMu.Unlock()
	return fmt.Sprintf("%s-%s", base, strings.ToLower(id))
}

// SessionTime extracts the creation time from a session id.
func SessionTime(id string) (time.Time, bool) {
	i := strings.LastIndex(id, "-")
	if i < 0 {
		return time.Time{}, false
	}
	parsed, err := ulid.ParseStrict(strings.ToUpper(id[i+1:]))
	if err != nil {
		return time.Time{}, false
	}
	return ulid.Time(parsed.Time()), true
}
