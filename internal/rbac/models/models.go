package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Permission is a named capability, unique within its tenant's store.
type Permission struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Role is a named set of permissions. Permissions holds permission names so
// union and subset checks are deterministic value operations.
type Role struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`
}

// PermissionSet is a deterministic set of permission names.
type PermissionSet map[string]struct{}

// NewPermissionSet builds a set from permission names.
func NewPermissionSet(names ...string) PermissionSet {
	set := make(PermissionSet, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

// Union adds every permission carried by the given roles.
func (s PermissionSet) Union(roles ...*Role) PermissionSet {
	for _, r := range roles {
		for _, n := range r.Permissions {
			s[n] = struct{}{}
		}
	}
	return s
}

// SubsetOf reports whether every permission in s is also in other.
func (s PermissionSet) SubsetOf(other PermissionSet) bool {
	for n := range s {
		if _, ok := other[n]; !ok {
			return false
		}
	}
	return true
}

// Contains reports whether the set carries the named permission.
func (s PermissionSet) Contains(name string) bool {
	_, ok := s[name]
	return ok
}

// Names returns the sorted permission names, for stable logging.
func (s PermissionSet) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
