// Package restype maps a bound client instance to the response metadata and
// token usage shapes its family reports.
package restype

import (
	"fmt"
	"reflect"

	"github.com/Quidge/chatconform/internal/client"
)

// Types is the pair of shapes one family reports.
type Types struct {
	Metadata reflect.Type
	Usage    reflect.Type
}

// Resolver is an immutable table of family name to response types. It is
// built once and never consults the instance beyond its family.
type Resolver struct {
	table map[string]Types
}

// NewResolver builds a resolver over the given families. A family without
// both types declared is an error.
func NewResolver(families ...client.Family) (*Resolver, error) {
	table := make(map[string]Types, len(families))
	for _, f := range families {
		t := Types{Metadata: f.Profile.MetadataType(), Usage: f.Profile.UsageType()}
		if t.Metadata == nil || t.Usage == nil {
			return nil, fmt.Errorf("family %s does not declare its response types", f.Name)
		}
		if _, dup := table[f.Name]; dup {
			return nil, fmt.Errorf("family %s listed twice", f.Name)
		}
		table[f.Name] = t
	}
	return &Resolver{table: table}, nil
}

// ForRegistered builds a resolver over every registered family.
func ForRegistered() (*Resolver, error) {
	return NewResolver(client.Families()...)
}

// Resolve returns the metadata and usage types for inst's family.
func (r *Resolver) Resolve(inst *client.Instance) (metadata, usage reflect.Type, err error) {
	t, err := r.ResolveFamily(inst.Family())
	if err != nil {
		return nil, nil, err
	}
	return t.Metadata, t.Usage, nil
}

// ResolveFamily returns the types for a family name. An unknown family is an
// *client.UnknownImplementationError; there is no fallback.
func (r *Resolver) ResolveFamily(family string) (Types, error) {
	t, ok := r.table[family]
	if !ok {
		return Types{}, &client.UnknownImplementationError{Family: family}
	}
	return t, nil
}

// Len returns the number of families the resolver covers.
func (r *Resolver) Len() int { return len(r.table) }
