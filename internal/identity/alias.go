package identity

import (
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/chapter-report/internal/model"
)

// Alias pins an exact raw spelling to a member, bypassing normalization.
// Either Key or Target must be set; Target names the canonical member and
// resolves to that name's key.
type Alias struct {
	RawName string          `yaml:"raw_name" json:"raw_name"`
	Key     model.MemberKey `yaml:"member_key,omitempty" json:"member_key,omitempty"`
	Target  string          `yaml:"target,omitempty" json:"target,omitempty"`
	Note    string          `yaml:"note,omitempty" json:"note,omitempty"`
}

// Aliases is an immutable lookup table of alias overrides keyed by trimmed
// raw name.
type Aliases struct {
	byRaw map[string]Alias
}

// NewAliases validates list and builds the lookup table. The same raw name
// may appear twice only if both entries agree.
func NewAliases(list []Alias) (Aliases, error) {
	byRaw := make(map[string]Alias, len(list))
	for _, a := range list {
		a.RawName = strings.TrimSpace(a.RawName)
		a.Target = strings.TrimSpace(a.Target)
		if a.RawName == "" {
			return Aliases{}, eris.New("identity: alias raw_name is required")
		}
		if a.Key == "" && a.Target == "" {
			return Aliases{}, eris.Errorf("identity: alias %q needs member_key or target", a.RawName)
		}
		if prev, ok := byRaw[a.RawName]; ok && (prev.Key != a.Key || prev.Target != a.Target) {
			return Aliases{}, eris.Errorf("identity: conflicting aliases for %q", a.RawName)
		}
		byRaw[a.RawName] = a
	}
	return Aliases{byRaw: byRaw}, nil
}

type aliasFile struct {
	Aliases []Alias `yaml:"aliases"`
}

// LoadAliasesFile reads an alias table from a YAML file of the form
//
//	aliases:
//	  - raw_name: "Jon Smith"
//	    target: "John Smith"
func LoadAliasesFile(path string) (Aliases, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Aliases{}, eris.Wrapf(err, "identity: read alias file %s", path)
	}
	var f aliasFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Aliases{}, eris.Wrapf(err, "identity: parse alias file %s", path)
	}
	return NewAliases(f.Aliases)
}

// Lookup returns the alias registered for the trimmed raw name.
func (a Aliases) Lookup(raw string) (Alias, bool) {
	alias, ok := a.byRaw[strings.TrimSpace(raw)]
	return alias, ok
}

// Len returns the number of aliases.
func (a Aliases) Len() int { return len(a.byRaw) }

// List returns all aliases sorted by raw name.
func (a Aliases) List() []Alias {
	out := make([]Alias, 0, len(a.byRaw))
	for _, alias := range a.byRaw {
		out = append(out, alias)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RawName < out[j].RawName })
	return out
}

// keyIn returns the member key the alias points to within chapterID.
func (a Alias) keyIn(chapterID string) model.MemberKey {
	if a.Key != "" {
		return a.Key
	}
	return KeyFor(chapterID, Normalize(a.Target))
}
