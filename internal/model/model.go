// Package model defines the persisted entities of the search engine:
// Site, Page, Lemma and Index, plus the factory that constructs them
// with correct defaults and timestamps.
package model

import "time"

// Status is the lifecycle state of a Site.
type Status string

const (
	StatusIndexing Status = "INDEXING"
	StatusIndexed  Status = "INDEXED"
	StatusFailed   Status = "FAILED"
)

// StopReason is the lastError recorded on a Site that was stopped by the user.
const StopReason = "Индексация остановлена пользователем"

// Site is a configured root to crawl.
type Site struct {
	ID         uint   `gorm:"primaryKey"`
	URL        string `gorm:"uniqueIndex;not null"`
	Name       string `gorm:"not null"`
	Status     Status `gorm:"not null"`
	StatusTime time.Time
	LastError  *string

	Pages  []Page  `gorm:"foreignKey:SiteID;constraint:OnDelete:CASCADE"`
	Lemmas []Lemma `gorm:"foreignKey:SiteID;constraint:OnDelete:CASCADE"`
}

// Page is a single fetched document, unique by (SiteID, Path).
type Page struct {
	ID      uint   `gorm:"primaryKey"`
	SiteID  uint   `gorm:"not null;uniqueIndex:idx_page_site_path"`
	Site    Site   `gorm:"foreignKey:SiteID"`
	Path    string `gorm:"not null;uniqueIndex:idx_page_site_path"`
	Code    int    `gorm:"not null"`
	Content string `gorm:"type:text"`

	Indexes []Index `gorm:"foreignKey:PageID;constraint:OnDelete:CASCADE"`
}

// Lemma is a normalized word form scoped to a Site, unique by (SiteID, Lemma).
type Lemma struct {
	ID        uint   `gorm:"primaryKey"`
	SiteID    uint   `gorm:"not null;uniqueIndex:idx_lemma_site_text"`
	Site      Site   `gorm:"foreignKey:SiteID"`
	Lemma     string `gorm:"not null;uniqueIndex:idx_lemma_site_text"`
	Frequency int    `gorm:"not null"`

	Indexes []Index `gorm:"foreignKey:LemmaID"`
}

// Index is one edge of the inverted index: a page, a lemma and a weight.
type Index struct {
	ID      uint    `gorm:"primaryKey"`
	PageID  uint    `gorm:"not null;uniqueIndex:idx_index_page_lemma"`
	Page    Page    `gorm:"foreignKey:PageID"`
	LemmaID uint    `gorm:"not null;uniqueIndex:idx_index_page_lemma"`
	Lemma   Lemma   `gorm:"foreignKey:LemmaID"`
	Rank    float64 `gorm:"not null"`
}

// Factory builds entities with the defaults and timestamps the rest of the
// system relies on. It holds no state; it exists so construction logic
// lives in one place rather than being inlined at every call site.
type Factory struct{}

// NewFactory returns an entity Factory.
func NewFactory() *Factory { return &Factory{} }

// NewSite builds a Site in status INDEXING, stamped with the current time.
func (Factory) NewSite(name, url string) *Site {
	return &Site{
		Name:       name,
		URL:        url,
		Status:     StatusIndexing,
		StatusTime: time.Now(),
	}
}

// NewPage builds a Page owned by site.
func (Factory) NewPage(site *Site, path string, code int, content string) *Page {
	return &Page{
		SiteID:  site.ID,
		Path:    path,
		Code:    code,
		Content: content,
	}
}

// NewLemma builds a Lemma owned by site with an initial frequency.
func (Factory) NewLemma(site *Site, lemma string, frequency int) *Lemma {
	return &Lemma{
		SiteID:    site.ID,
		Lemma:     lemma,
		Frequency: frequency,
	}
}

// NewIndex builds an Index row linking page and lemma with the given rank.
func (Factory) NewIndex(page *Page, lemma *Lemma, rank float64) *Index {
	return &Index{
		PageID:  page.ID,
		LemmaID: lemma.ID,
		Rank:    rank,
	}
}

// TableName pins the table name to "indexes": gorm's default
// pluralization of "Index" produces "indices", which the hand-written
// joins in internal/store do not expect.
func (Index) TableName() string { return "indexes" }
