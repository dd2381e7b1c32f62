// Package website parses the list of Umami sites a report covers.
//
// Sites are configured as a comma-separated list where each entry is either a
// bare website ID or "id:label". The label is what appears in the digest.
package website

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Kind classifies the shape of a website ID.
type Kind string

const (
	KindUUID    Kind = "uuid"
	KindNumeric Kind = "numeric"
	KindOther   Kind = "other"
)

// Site is one tracked website within an Umami instance.
type Site struct {
	ID    string `json:"id" yaml:"id"`
	Label string `json:"label" yaml:"label"`
}

// Kind reports whether the ID looks like an Umami v2+ UUID or a legacy
// numeric ID.
func (s Site) Kind() Kind {
	if _, err := uuid.Parse(s.ID); err == nil {
		return KindUUID
	}
	if isDigits(s.ID) {
		return KindNumeric
	}
	return KindOther
}

// HasLabel reports whether a label distinct from the ID was configured.
func (s Site) HasLabel() bool {
	return s.Label != "" && s.Label != s.ID
}

// String returns "label (id)", or just the id when there is no label.
func (s Site) String() string {
	if !s.HasLabel() {
		return s.ID
	}
	return fmt.Sprintf("%s (%s)", s.Label, s.ID)
}

// Parse splits a list such as "id1:Blog,id2" into sites. Empty entries are
// skipped, as are "id:label" entries whose id or label is blank. Only the
// first colon separates id from label.
func Parse(list string) ([]Site, error) {
	var sites []Site
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		if id, label, ok := strings.Cut(item, ":"); ok {
			id = strings.TrimSpace(id)
			label = strings.TrimSpace(label)
			if id == "" || label == "" {
				continue
			}
			sites = append(sites, Site{ID: id, Label: label})
			continue
		}

		sites = append(sites, Site{ID: item, Label: item})
	}

	return sites, Validate(sites)
}

// Validate rejects duplicate IDs and fills in missing labels.
func Validate(sites []Site) error {
	seen := make(map[string]bool, len(sites))
	for i := range sites {
		s := &sites[i]
		s.ID = strings.TrimSpace(s.ID)
		if s.ID == "" {
			return fmt.Errorf("site %d: empty website id", i+1)
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate website id %q", s.ID)
		}
		seen[s.ID] = true

		s.Label = strings.TrimSpace(s.Label)
		if s.Label == "" {
			s.Label = s.ID
		}
	}
	return nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
