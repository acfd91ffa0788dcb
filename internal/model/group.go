package model

import (
	"errors"
	"fmt"
	"strings"
)

// Classification errors.
var (
	// ErrUnknownSex is returned when a sex label cannot be parsed.
	ErrUnknownSex = errors.New("unknown sex label")
	// ErrUnknownGroup is returned when a population group label cannot be parsed.
	ErrUnknownGroup = errors.New("unknown population group label")
)

// Sex identifies which sex a prevalence series was tabulated for.
//
// Design decision: We use iota-based constants rather than string constants
// for efficiency in comparisons and map keys. The String() method provides
// human-readable output when needed.
type Sex int

const (
	// SexFemale is the female series.
	SexFemale Sex = iota
	// SexMale is the male series.
	SexMale
)

// String returns a human-readable representation of the sex.
func (s Sex) String() string {
	switch s {
	case SexFemale:
		return "female"
	case SexMale:
		return "male"
	default:
		return "unknown"
	}
}

// ParseSex converts a label such as "female", "F" or "male" to a Sex.
// Matching is case-insensitive and accepts single-letter abbreviations,
// which is how survey extracts commonly encode the column.
func ParseSex(label string) (Sex, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "female", "f", "women", "w":
		return SexFemale, nil
	case "male", "m", "men":
		return SexMale, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownSex, label)
	}
}

// Group identifies the population subgroup a prevalence series covers.
type Group int

const (
	// GroupGeneral is the general population series.
	GroupGeneral Group = iota
	// GroupPublicSector is the public-sector-employee subgroup series.
	GroupPublicSector
)

// String returns a human-readable representation of the group.
func (g Group) String() string {
	switch g {
	case GroupGeneral:
		return "general"
	case GroupPublicSector:
		return "public_sector"
	default:
		return "unknown"
	}
}

// ParseGroup converts a label such as "general" or "public_sector" to a Group.
func ParseGroup(label string) (Group, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "general", "all", "total":
		return GroupGeneral, nil
	case "public_sector", "public-sector", "public", "servants":
		return GroupPublicSector, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownGroup, label)
	}
}

// RunKey identifies one independent estimation run. Each (sex, group) pair
// is estimated on its own; runs share no state.
type RunKey struct {
	Sex   Sex   `json:"sex"`
	Group Group `json:"group"`
}

// String returns a stable "sex/group" label used in logs and file names.
func (k RunKey) String() string {
	return k.Sex.String() + "/" + k.Group.String()
}
