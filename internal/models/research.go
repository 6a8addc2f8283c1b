package models

// ResearchData is the side-channel snapshot delivered alongside the answer stream. At most
// one snapshot is retained per turn; a new one replaces the previous entirely, the
// sub-slices are never merged.
type ResearchData struct {
	Internal []InternalRecord `json:"internal"`
	Business []BusinessRecord `json:"business"`
	External []SourceRecord   `json:"external"`
}

// Empty reports whether the snapshot carries no records at all.
func (d ResearchData) Empty() bool {
	return len(d.Internal) == 0 && len(d.Business) == 0 && len(d.External) == 0
}

// InternalRecord is a hit from the internal document index.
type InternalRecord struct {
	ID     int    `json:"id,omitempty"`
	Title  string `json:"title"`
	Author string `json:"author,omitempty"`
	Team   string `json:"team,omitempty"`
	Date   string `json:"date,omitempty"`
	URL    string `json:"url,omitempty"`
}

// BusinessRecord is a hit from the business registry.
type BusinessRecord struct {
	ID       int    `json:"id,omitempty"`
	Name     string `json:"name"`
	Industry string `json:"industry,omitempty"`
	Region   string `json:"region,omitempty"`
	URL      string `json:"url,omitempty"`
}

// SourceRecord is a bibliographic entry citable from assistant prose through bracketed
// markers.
type SourceRecord struct {
	// ID is the cross-reference key used by citation markers. When the upstream service
	// omits it, the record's position decides the effective id, see EffectiveSourceID.
	ID             int      `json:"id,omitempty"`
	Title          string   `json:"title"`
	Authors        []string `json:"authors,omitempty"`
	Year           int      `json:"year,omitempty"`
	SourceName     string   `json:"sourceName,omitempty"`
	URL            string   `json:"url,omitempty"`
	CitationsCount int      `json:"citationsCount,omitempty"`
}

// EffectiveSourceID returns the id a citation marker must carry to reference rec. Records
// without an explicit positive id fall back to their position in the containing sequence,
// 1-based.
func EffectiveSourceID(rec SourceRecord, position int) int {
	if rec.ID > 0 {
		return rec.ID
	}
	return position + 1
}
