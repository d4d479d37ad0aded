// Package acs renders per-request access scopes into SQL predicates.
package acs

// Predicate is a SQL boolean expression written with `?` placeholders.
type Predicate struct {
	SQL  string
	Args []any
}

// Scope restricts which rows a query may read or mutate.
type Scope interface {
	FullAccess() bool
	Restrict(column string) Predicate
	// OwnerUID is the uid rows are restricted to, if any.
	OwnerUID() (string, bool)
}

type grandAccess struct{}

// GrandAccess restricts nothing.
func GrandAccess() Scope { return grandAccess{} }

func (grandAccess) FullAccess() bool { return true }
func (grandAccess) Restrict(string) Predicate { return Predicate{SQL: "1 = 1"} }
func (grandAccess) OwnerUID() (string, bool) { return "", false }

// EditOwnObject restricts rows to those whose column equals the owner uid.
type EditOwnObject struct {
	UID string
}

func (EditOwnObject) FullAccess() bool { return false }

func (s EditOwnObject) Restrict(column string) Predicate {
	return Predicate{SQL: column + " = ?", Args: []any{s.UID}}
}

func (s EditOwnObject) OwnerUID() (string, bool) { return s.UID, true }

type accessDenied struct{}

// AccessDenied matches no rows.
func AccessDenied() Scope { return accessDenied{} }

func (accessDenied) FullAccess() bool { return false }
func (accessDenied) Restrict(string) Predicate { return Predicate{SQL: "1 = 0"} }
func (accessDenied) OwnerUID() (string, bool) { return "", false }

// Denied reports whether s can never match a row.
func Denied(s Scope) bool {
	_, ok := s.(accessDenied)
	return ok
}
