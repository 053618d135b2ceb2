package resolve

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// MasterEntry is one canonical identity and the spellings it is known by.
type MasterEntry struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	Variants []string `yaml:"variants"`
}

type masterFile struct {
	Jockeys []MasterEntry `yaml:"jockeys"`
}

// MasterList is the canonical name list. It is loaded once and never
// modified afterwards, so it may be shared across runs.
type MasterList struct {
	entries []MasterEntry
	index   *Index
}

// LoadMasterList reads a YAML master list from path.
func LoadMasterList(path string) (*MasterList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "resolve: read master list %s", path)
	}
	return ParseMasterList(data)
}

// ParseMasterList parses YAML of the form
//
//	jockeys:
//	  - id: smith-j
//	    name: J.スミス
//	    variants: ["Ｊ．スミス", "J. Smith"]
func ParseMasterList(data []byte) (*MasterList, error) {
	var f masterFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "resolve: parse master list")
	}
	return NewMasterList(f.Jockeys)
}

// NewMasterList validates entries and builds the candidate index.
func NewMasterList(entries []MasterEntry) (*MasterList, error) {
	seen := make(map[string]bool, len(entries))
	var cands []Candidate
	for i, e := range entries {
		id := strings.TrimSpace(e.ID)
		if id == "" {
			return nil, eris.Errorf("resolve: master entry %d has no id", i)
		}
		if seen[id] {
			return nil, eris.Errorf("resolve: duplicate master id %q", id)
		}
		seen[id] = true
		if Normalize(e.Name) == "" {
			return nil, eris.Errorf("resolve: master entry %q has no name", id)
		}
		cands = append(cands, Candidate{ID: id, Name: e.Name})
		for _, v := range e.Variants {
			if Normalize(v) != "" {
				cands = append(cands, Candidate{ID: id, Name: v})
			}
		}
	}
	out := make([]MasterEntry, len(entries))
	copy(out, entries)
	return &MasterList{entries: out, index: NewIndex(cands)}, nil
}

// Len returns the number of canonical identities.
func (m *MasterList) Len() int { return len(m.entries) }

// Index returns the prepared candidate index.
func (m *MasterList) Index() *Index { return m.index }

// Canonical returns the display name of id.
func (m *MasterList) Canonical(id string) (string, bool) {
	for _, e := range m.entries {
		if e.ID == id {
			return e.Name, true
		}
	}
	return "", false
}
