// Package classify maps raw chart of accounts records onto the closed account
// type enum and supplies the name heuristics used by the statement builders.
package classify

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"

	"github.com/odyssey-erp/ledger-engine/internal/accounting/policy"
	"github.com/odyssey-erp/ledger-engine/internal/accounting/shared"
)

// foldCase builds a new Caser per call; Casers keep state and cannot be shared.
func foldCase(s string) string {
	return cases.Fold().String(s)
}

// typeAliases is keyed by the folded, singular form of a raw type.
var typeAliases = map[string]shared.AccountType{
	"asset":                 shared.AccountTypeAsset,
	"current asset":         shared.AccountTypeAsset,
	"non current asset":     shared.AccountTypeAsset,
	"noncurrent asset":      shared.AccountTypeAsset,
	"fixed asset":           shared.AccountTypeAsset,
	"long term asset":       shared.AccountTypeAsset,
	"liability":             shared.AccountTypeLiability,
	"current liability":     shared.AccountTypeLiability,
	"non current liability": shared.AccountTypeLiability,
	"noncurrent liability":  shared.AccountTypeLiability,
	"long term liability":   shared.AccountTypeLiability,
	"equity":                shared.AccountTypeEquity,
	"capital":               shared.AccountTypeEquity,
	"revenue":               shared.AccountTypeRevenue,
	"operating revenue":     shared.AccountTypeRevenue,
	"other revenue":         shared.AccountTypeRevenue,
	"income":                shared.AccountTypeRevenue,
	"operating income":      shared.AccountTypeRevenue,
	"other income":          shared.AccountTypeRevenue,
	"sale":                  shared.AccountTypeRevenue,
	"expense":               shared.AccountTypeExpense,
	"operating expense":     shared.AccountTypeExpense,
	"other expense":         shared.AccountTypeExpense,
	"cogs":                  shared.AccountTypeExpense,
	"cost of sale":          shared.AccountTypeExpense,
	"cost of good":          shared.AccountTypeExpense,
	"cost of goods sold":    shared.AccountTypeExpense,
	"operating cost":        shared.AccountTypeExpense,
}

var typeSeparators = strings.NewReplacer("_", " ", "-", " ")

// ParseType folds a raw type string into the closed enum. Plural forms and
// underscore or hyphen separators are accepted. Unknown values map to OTHER.
func ParseType(raw string) shared.AccountType {
	key := strings.Join(strings.Fields(typeSeparators.Replace(foldCase(raw))), " ")
	if t, ok := typeAliases[key]; ok {
		return t
	}
	if t, ok := typeAliases[singular(key)]; ok {
		return t
	}
	return shared.AccountTypeOther
}

// singular strips an English plural from the last word.
func singular(key string) string {
	switch {
	case strings.HasSuffix(key, "ies"):
		return strings.TrimSuffix(key, "ies") + "y"
	case strings.HasSuffix(key, "ss"):
		return key
	case strings.HasSuffix(key, "s"):
		return strings.TrimSuffix(key, "s")
	}
	return key
}

// Classify converts a raw record into a typed Account and its natural balance side.
func Classify(rec shared.AccountRecord) (shared.Account, shared.Side) {
	acc := shared.Account{
		ID:        rec.ID,
		CompanyID: rec.CompanyID,
		Code:      strings.TrimSpace(rec.Code),
		Name:      strings.TrimSpace(rec.Name),
		Type:      ParseType(rec.Type),
		IsActive:  rec.IsActive,
	}
	return acc, acc.Side()
}

// ClassifyAll classifies a chart of accounts.
func ClassifyAll(records []shared.AccountRecord) []shared.Account {
	out := make([]shared.Account, 0, len(records))
	for _, rec := range records {
		acc, _ := Classify(rec)
		out = append(out, acc)
	}
	return out
}

// Classifier answers heuristic questions about accounts under a policy.
type Classifier struct {
	policy policy.Policy
}

// New constructs a Classifier.
func New(p policy.Policy) Classifier {
	return Classifier{policy: p}
}

// IsCostOfSales reports whether the account belongs to cost of sales.
func (c Classifier) IsCostOfSales(code, name string) bool {
	if strings.HasPrefix(code, "50") {
		return true
	}
	if strings.Contains(foldCase(name), "cost of") {
		return true
	}
	return c.policy.IsDisposalCode(code)
}

// IsFixedAsset reports whether the account is a non-current asset by code.
func (c Classifier) IsFixedAsset(code string, t shared.AccountType) bool {
	return t == shared.AccountTypeAsset && CodeNumber(code) >= c.policy.FixedAssetThreshold
}

// CodeNumber parses the leading digits of an account code. Non-numeric codes return 0.
func CodeNumber(code string) int {
	end := 0
	for end < len(code) && code[end] >= '0' && code[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, err := strconv.Atoi(code[:end])
	if err != nil {
		return 0
	}
	return n
}

// NameHas reports whether the folded name contains any of the folded keywords.
func NameHas(name string, keywords ...string) bool {
	folded := foldCase(name)
	for _, kw := range keywords {
		if strings.Contains(folded, foldCase(kw)) {
			return true
		}
	}
	return false
}

var droppedTokens = map[string]struct{}{
	"accumulated":  {},
	"depreciation": {},
}

// NormalizeName lower-cases the name, strips "accumulated"/"depreciation" and
// collapses whitespace and punctuation. Only used for contra-account linkage.
func NormalizeName(name string) string {
	tokens := strings.FieldsFunc(foldCase(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	kept := tokens[:0]
	for _, tok := range tokens {
		if _, drop := droppedTokens[tok]; drop {
			continue
		}
		kept = append(kept, tok)
	}
	return strings.Join(kept, " ")
}

// Related reports whether either normalized name contains the other.
func Related(a, b string) bool {
	na, nb := NormalizeName(a), NormalizeName(b)
	if na == "" || nb == "" {
		return false
	}
	return strings.Contains(na, nb) || strings.Contains(nb, na)
}
