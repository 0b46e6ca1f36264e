// Package id mints the identifiers the host hands out: callback tokens
// for bridge calls, registry operation ids and trace/span ids.
//
// Every id is "<kind>_<ulid>". ULIDs sort by creation time, so tokens in a
// log read in issue order, and a shared monotonic entropy source keeps ids
// unique even within one millisecond.
package id

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Kind is the prefix naming what an id refers to
type Kind string

const (
	KindSuccess   Kind = "cb"
	KindError     Kind = "err"
	KindOperation Kind = "op"
	KindTrace     Kind = "trace"
	KindSpan      Kind = "span"
)

var ErrMalformed = errors.New("malformed id")

// Token joins a suspended host call to the guest handler that completes it
type Token string

// OperationID identifies one registry install, batch or removal
type OperationID string

func (t Token) String() string       { return string(t) }
func (o OperationID) String() string { return string(o) }

var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

func mint(kind Kind, at ulid.ULID) string {
	return string(kind) + "_" + at.String()
}

// draw returns n ulids sharing one timestamp, strictly increasing
func draw(n int) []ulid.ULID {
	mu.Lock()
	defer mu.Unlock()

	ms := ulid.Timestamp(time.Now())
	out := make([]ulid.ULID, n)
	for i := range out {
		out[i] = ulid.MustNew(ms, entropy)
	}
	return out
}

// New returns a fresh id of the given kind
func New(kind Kind) string {
	return mint(kind, draw(1)[0])
}

// NewTokenPair returns the success and error tokens of one bridge call
func NewTokenPair() (success, failure Token) {
	ids := draw(2)
	return Token(mint(KindSuccess, ids[0])), Token(mint(KindError, ids[1]))
}

func NewOperationID() OperationID {
	return OperationID(New(KindOperation))
}

// Split breaks an id into its kind and ulid
func Split(s string) (Kind, ulid.ULID, error) {
	kind, raw, ok := strings.Cut(s, "_")
	if !ok || kind == "" {
		return "", ulid.ULID{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	u, err := ulid.ParseStrict(raw)
	if err != nil {
		return "", ulid.ULID{}, fmt.Errorf("%w: %q: %v", ErrMalformed, s, err)
	}
	return Kind(kind), u, nil
}

// Issued reports when an id was minted, to millisecond precision
func Issued(s string) (time.Time, error) {
	_, u, err := Split(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(u.Time()), nil
}
