package orders

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const DefaultNumberPrefix = "SF"

// NumberGenerator issues human-readable order numbers of the form
// PREFIX-<ULID>. ULIDs sort by creation time, which keeps numbers roughly
// chronological for support staff.
type NumberGenerator struct {
	prefix  string
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

func NewNumberGenerator(prefix string) *NumberGenerator {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = DefaultNumberPrefix
	}
	return &NumberGenerator{
		prefix:  prefix,
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

// Next returns a fresh order number. Uniqueness is finally enforced by the
// orders_order_number_key constraint; callers retry on violation.
func (g *NumberGenerator) Next() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(g.now()), g.entropy)
	if err != nil {
		return "", fmt.Errorf("generate order number: %w", err)
	}
	return g.prefix + "-" + id.String(), nil
}
