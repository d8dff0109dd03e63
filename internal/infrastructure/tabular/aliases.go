package tabular

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"partnermap/internal/domain/partner"
	"partnermap/internal/errs"
)

type aliasFile struct {
	Aliases map[string][]string `toml:"aliases"`
}

// LoadAliases reads extra header aliases from a TOML file of the form
//
//	[aliases]
//	name = ["Korkeakoulu"]
//
// and merges them after the defaults. An empty path yields the defaults.
func LoadAliases(path string) (partner.ColumnAliases, error) {
	defaults := partner.DefaultColumnAliases()
	if strings.TrimSpace(path) == "" {
		return defaults, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrapf(err, "read alias file %q", path)
	}
	return ParseAliases(raw, defaults)
}

func ParseAliases(raw []byte, base partner.ColumnAliases) (partner.ColumnAliases, error) {
	var file aliasFile
	if err := toml.Unmarshal(raw, &file); err != nil {
		return nil, errs.Wrap(err, "decode alias file")
	}

	extra := partner.ColumnAliases{}
	for name, names := range file.Aliases {
		column := partner.Column(strings.TrimSpace(name))
		if _, ok := base[column]; !ok {
			return nil, fmt.Errorf("unknown column %q in alias file (known: %s)", name, strings.Join(knownColumns(base), ", "))
		}
		for _, alias := range names {
			if alias = strings.TrimSpace(alias); alias != "" {
				extra[column] = append(extra[column], alias)
			}
		}
	}
	return base.Merge(extra), nil
}

func knownColumns(aliases partner.ColumnAliases) []string {
	out := make([]string, 0, len(aliases))
	for column := range aliases {
		out = append(out, string(column))
	}
	sort.Strings(out)
	return out
}
