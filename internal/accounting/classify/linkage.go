package classify

// Contra describes a candidate contra account.
type Contra struct {
	AccountID int64
	Code      string
	Name      string
}

// AssetLinkage resolves the contra accounts (accumulated depreciation) that
// offset a fixed asset. Builders depend on this interface only, so the name
// heuristic can be swapped for an explicit foreign key.
type AssetLinkage interface {
	ContraFor(assetID int64, assetName string, candidates []Contra) []Contra
}

// NameLinkage links contra accounts by fuzzy name matching.
type NameLinkage struct{}

// ContraFor returns every candidate whose name is related to the asset name.
func (NameLinkage) ContraFor(_ int64, assetName string, candidates []Contra) []Contra {
	var out []Contra
	for _, c := range candidates {
		if Related(assetName, c.Name) {
			out = append(out, c)
		}
	}
	return out
}

// ExplicitLinkage links contra accounts through a stored asset→contra mapping.
type ExplicitLinkage map[int64][]int64

// ContraFor returns the candidates mapped to the asset id.
func (l ExplicitLinkage) ContraFor(assetID int64, _ string, candidates []Contra) []Contra {
	ids := l[assetID]
	if len(ids) == 0 {
		return nil
	}
	wanted := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	var out []Contra
	for _, c := range candidates {
		if _, ok := wanted[c.AccountID]; ok {
			out = append(out, c)
		}
	}
	return out
}
