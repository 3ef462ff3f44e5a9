// Package identity resolves raw member name strings to stable member keys.
package identity

import (
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/chapter-report/internal/model"
)

// memberNamespace seeds name-based member keys.
var memberNamespace = uuid.MustParse("5b0f6f0e-3c1d-4f7e-9a51-2f1f8f4c6a10")

var punctuation = strings.NewReplacer(
	"'", "",
	"’", "",
	"‘", "",
	"`", "",
	".", "",
	",", "",
	"\"", "",
	"-", " ",
	"–", " ",
	"_", " ",
)

// Normalize canonicalizes a raw member name for identity lookup:
//  1. Unicode NFKC
//  2. Case folding
//  3. Dropping apostrophes, quotes, periods and commas ("O'Brien" == "OBrien")
//  4. Treating hyphens and underscores as spaces ("Mary-Jane" == "Mary Jane")
//  5. Trimming and collapsing whitespace
func Normalize(raw string) string {
	s := norm.NFKC.String(raw)
	s = cases.Fold().String(s)
	s = punctuation.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// DisplayName tidies a raw name for presentation without changing its case.
func DisplayName(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

// KeyFor derives the member key for a normalized name within a chapter.
// Derivation is deterministic so rebuilding from the same inputs yields the
// same keys.
func KeyFor(chapterID, normalized string) model.MemberKey {
	return model.MemberKey(uuid.NewSHA1(memberNamespace, []byte(chapterID+"\x00"+normalized)).String())
}
