// Package identity resolves a canonical sender address from the loosely
// structured sender metadata that mail stores expose.
package identity

import (
	"regexp"
	"strings"
)

// addressPattern matches an address-shaped token anywhere in a string.
var addressPattern = regexp.MustCompile(`[\w.-]+@[\w.-]+`)

// SenderObject is the structured sender a mail store may attach to a
// message. Either method may fail when the store cannot resolve it.
type SenderObject interface {
	// PrimaryAddress returns the directory-backed primary address.
	PrimaryAddress() (string, error)

	// Address returns the generic address field, which may not be a
	// plain SMTP address.
	Address() (string, error)
}

// Descriptor is the raw sender information read from a message.
type Descriptor struct {
	// RawAddress is the sender address field as reported by the store.
	RawAddress string

	// Object is the structured sender, nil when unavailable.
	Object SenderObject

	// DisplayName is the free-text sender name.
	DisplayName string
}

// Stage is one resolution attempt. It reports ok=false when it has no
// plausible address to offer.
type Stage struct {
	Name    string
	Resolve func(d Descriptor) (string, bool)
}

// DefaultStages returns the resolution order: raw address field, the
// structured object's primary address, its generic address field, and
// finally the display name.
func DefaultStages() []Stage {
	return []Stage{
		{Name: "raw_address", Resolve: fromRawAddress},
		{Name: "primary_address", Resolve: fromPrimaryAddress},
		{Name: "object_address", Resolve: fromObjectAddress},
		{Name: "display_name", Resolve: fromDisplayName},
	}
}

// Resolver runs its stages in order; the first stage that yields an
// address wins.
type Resolver struct {
	stages []Stage
}

// NewResolver creates a resolver. With no stages it uses DefaultStages.
func NewResolver(stages ...Stage) *Resolver {
	if len(stages) == 0 {
		stages = DefaultStages()
	}
	return &Resolver{stages: stages}
}

// Resolve returns the lowercased sender address and the name of the stage
// that produced it, or ok=false when every stage came up empty.
func (r *Resolver) Resolve(d Descriptor) (addr string, stage string, ok bool) {
	for _, s := range r.stages {
		if a, found := s.Resolve(d); found {
			return strings.ToLower(a), s.Name, true
		}
	}
	return "", "", false
}

// Resolve runs the default resolver against d.
func Resolve(d Descriptor) (string, bool) {
	addr, _, ok := defaultResolver.Resolve(d)
	return addr, ok
}

var defaultResolver = NewResolver()

// Extract returns the first address-shaped token in s, lowercased.
func Extract(s string) (string, bool) {
	m := addressPattern.FindString(strings.TrimSpace(s))
	if m == "" {
		return "", false
	}
	return strings.ToLower(m), true
}

// IsAddress reports whether s contains an address-shaped token.
func IsAddress(s string) bool {
	return addressPattern.MatchString(s)
}

func fromRawAddress(d Descriptor) (string, bool) {
	return Extract(d.RawAddress)
}

func fromPrimaryAddress(d Descriptor) (string, bool) {
	if d.Object == nil {
		return "", false
	}
	addr, err := d.Object.PrimaryAddress()
	if err != nil {
		return "", false
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "", false
	}
	return addr, true
}

func fromObjectAddress(d Descriptor) (string, bool) {
	if d.Object == nil {
		return "", false
	}
	addr, err := d.Object.Address()
	if err != nil {
		return "", false
	}
	return Extract(addr)
}

func fromDisplayName(d Descriptor) (string, bool) {
	return Extract(d.DisplayName)
}
