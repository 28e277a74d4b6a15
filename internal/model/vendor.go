package model

import "strings"

// ManualSupplier is the supplier name used for single ad-hoc targets that
// are not part of the loaded registry.
const ManualSupplier = "Manual"

// VendorRecord is one vendor contact belonging to a supplier.
type VendorRecord struct {
	// Email is the lowercased vendor address, unique within its supplier.
	Email string

	// DisplayName is the vendor's human-readable name.
	DisplayName string

	// Address is the vendor's postal address, used in body templates.
	Address string

	// CC holds extra addresses the vendor wants copied, as entered in the
	// source sheet (may contain several separated by ';' or ',').
	CC string
}

// Supplier groups the vendor records that share a supplier name.
type Supplier struct {
	Name    string
	Vendors []VendorRecord
}

// Registry is an immutable snapshot of the supplier -> vendors mapping.
// It is never mutated after construction; reloads produce a new Registry.
type Registry struct {
	// Version increases by one on every reload of the holder that
	// produced this snapshot.
	Version int64

	// Source is the file path (or other origin) the snapshot was loaded from.
	Source string

	// Suppliers is ordered by first appearance in the source.
	Suppliers []Supplier
}

// Target is a flattened (supplier, vendor) pair used by both workers.
type Target struct {
	Supplier string
	Vendor   VendorRecord
}

// Len returns the total number of vendor records in the registry.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, s := range r.Suppliers {
		n += len(s.Vendors)
	}
	return n
}

// Targets flattens the registry into (supplier, vendor) pairs, preserving
// supplier and vendor order.
func (r *Registry) Targets() []Target {
	if r == nil {
		return nil
	}
	targets := make([]Target, 0, r.Len())
	for _, s := range r.Suppliers {
		for _, v := range s.Vendors {
			targets = append(targets, Target{Supplier: s.Name, Vendor: v})
		}
	}
	return targets
}

// Lookup returns the first target whose vendor email equals email,
// compared case-insensitively.
func (r *Registry) Lookup(email string) (Target, bool) {
	email = strings.ToLower(strings.TrimSpace(email))
	if r == nil || email == "" {
		return Target{}, false
	}
	for _, s := range r.Suppliers {
		for _, v := range s.Vendors {
			if strings.ToLower(v.Email) == email {
				return Target{Supplier: s.Name, Vendor: v}, true
			}
		}
	}
	return Target{}, false
}

// ManualTarget builds the synthetic target used when a single address is
// supplied for a run instead of the registry.
func ManualTarget(email string) Target {
	return Target{
		Supplier: ManualSupplier,
		Vendor:   VendorRecord{Email: strings.ToLower(strings.TrimSpace(email))},
	}
}
