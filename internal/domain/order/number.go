package order

import (
	"strings"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

const (
	// DefaultPrefix is used when the generator is created without a prefix.
	DefaultPrefix = "RST"

	suffixLen          = 6
	maxNumberAttempts  = 8
	defaultBloomSize   = 1_000_000
	defaultBloomFPRate = 0.001
)

// ErrNumberSpaceExhausted is returned when no unseen order number could be
// produced within the attempt budget.
var ErrNumberSpaceExhausted = errors.New("order number space exhausted")

// NumberGenerator produces human-traceable order numbers of the form
// PREFIX-YYYYMMDD-XXXXXX. Numbers already issued by this process on the
// current day are remembered in a bloom filter and skipped; the database
// unique constraint remains the final authority.
type NumberGenerator struct {
	prefix string
	now    func() time.Time
	suffix func() string

	mu     sync.Mutex
	day    string
	issued *bloom.BloomFilter
}

// NewNumberGenerator creates a NumberGenerator with the given prefix.
func NewNumberGenerator(prefix string) *NumberGenerator {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &NumberGenerator{
		prefix: prefix,
		now:    time.Now,
		suffix: randomSuffix,
		issued: bloom.NewWithEstimates(defaultBloomSize, defaultBloomFPRate),
	}
}

// Next returns a fresh order number.
func (g *NumberGenerator) Next() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	day := g.now().UTC().Format("20060102")
	if day != g.day {
		g.issued.ClearAll()
		g.day = day
	}

	for range maxNumberAttempts {
		number := g.prefix + "-" + day + "-" + g.suffix()
		if !g.issued.TestOrAddString(number) {
			return number, nil
		}
	}
	return "", ErrNumberSpaceExhausted
}

func randomSuffix() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(hex[:suffixLen])
}
