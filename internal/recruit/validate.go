// Package recruit implements the board / application / team lifecycle of the
// recruiting platform.
//
// Board lifecycle:
//
//	open ──► (acceptCnt > 0: content frozen) ──► completed (team formed)
//	  │
//	  └──► inactive (soft-deleted by owner)
//
// Application lifecycle:
//
//	applied ──► accepted
//	   │            │
//	   └────────────┴──► withdrawn (active = false)
//
// A completed board accepts no new applications, accepts or withdrawals.
package recruit

import (
	"errors"
	"fmt"
)

// Kind is the top-level board classification.
type Kind string

const (
	KindAll     Kind = "all"
	KindStudy   Kind = "study"
	KindContest Kind = "contest"
)

// Category is the kind-dependent sub-classification of a board.
type Category string

const (
	CategoryDevelopment Category = "development"
	CategoryDesign      Category = "design"
	CategoryIdea        Category = "idea"
	CategoryEtc         Category = "etc"
)

// categoriesByKind lists the categories each board kind accepts.
var categoriesByKind = map[Kind][]Category{
	KindStudy:   {CategoryDevelopment, CategoryDesign, CategoryEtc},
	KindContest: {CategoryDevelopment, CategoryDesign, CategoryIdea, CategoryEtc},
}

// ValidateKind maps raw input to a Kind.
//
// Policy: permissive. Unrecognized input resolves to KindAll, which list
// queries treat as "no kind filter". Operations that need a concrete board
// kind (board creation) compare the result with the raw input instead.
func ValidateKind(raw string) Kind {
	k := Kind(raw)
	switch k {
	case KindAll, KindStudy, KindContest:
		return k
	}
	return KindAll
}

// ValidateCategory maps raw input to a Category allowed for kind.
//
// Policy: permissive. A category that is unknown, or not allowed for kind,
// resolves to CategoryDevelopment.
func ValidateCategory(kind Kind, raw string) Category {
	c := Category(raw)
	for _, allowed := range categoriesByKind[kind] {
		if allowed == c {
			return c
		}
	}
	return CategoryDevelopment
}

// IsCategoryAllowed reports whether raw is a category kind accepts as-is.
func IsCategoryAllowed(kind Kind, raw string) bool {
	for _, allowed := range categoriesByKind[kind] {
		if string(allowed) == raw {
			return true
		}
	}
	return false
}

// Sort keys accepted by ValidateSortOrder.
const (
	SortCreatedAt = "createdAt"
	SortEndDay    = "endDay"
	SortHit       = "hit"
	SortTitle     = "title"
)

// OrderKey is one component of a composite sort.
type OrderKey struct {
	Field string
	Desc  bool
}

// OrderSpec is a composite sort, most significant key first.
type OrderSpec []OrderKey

// ErrUnsortableField is returned by ValidateSortOrder for unknown sort tokens.
var ErrUnsortableField = errors.New("unsortable field")

// ValidateSortOrder maps a sort token to a composite order.
//
// Policy: strict. Unlike ValidateKind and ValidateCategory an unknown token is
// an error, never a silent default.
func ValidateSortOrder(raw string) (OrderSpec, error) {
	switch raw {
	case SortCreatedAt, SortEndDay, SortHit:
		return OrderSpec{{Field: raw, Desc: true}, {Field: SortTitle, Desc: false}}, nil
	case SortTitle:
		return OrderSpec{{Field: SortTitle, Desc: true}, {Field: SortCreatedAt, Desc: true}}, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnsortableField, raw)
}
