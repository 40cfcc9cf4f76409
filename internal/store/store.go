// Package store is the typed persistence layer: repositories for
// Site, Page, Lemma and Index backed by gorm over a pure-Go sqlite
// driver.
package store

import (
	"errors"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mkrylov/searchengine/internal/model"
)

// Store bundles a gorm connection and the per-entity repositories.
type Store struct {
	DB *gorm.DB

	Sites   *SiteRepo
	Pages   *PageRepo
	Lemmas  *LemmaRepo
	Indexes *IndexRepo
}

// Open opens (and, if needed, creates) the sqlite database at dsn and
// migrates the schema.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&model.Site{}, &model.Page{}, &model.Lemma{}, &model.Index{}); err != nil {
		return nil, err
	}
	return &Store{
		DB:      db,
		Sites:   &SiteRepo{db: db},
		Pages:   &PageRepo{db: db},
		Lemmas:  &LemmaRepo{db: db},
		Indexes: &IndexRepo{db: db},
	}, nil
}

// ErrNotFound is returned by find methods when no row matches.
var ErrNotFound = gorm.ErrRecordNotFound

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// SiteRepo persists model.Site rows.
type SiteRepo struct{ db *gorm.DB }

func (r *SiteRepo) Save(site *model.Site) error {
	return r.db.Save(site).Error
}

func (r *SiteRepo) Delete(site *model.Site) error {
	return r.db.Select("Pages", "Lemmas").Delete(site).Error
}

func (r *SiteRepo) DeleteByURL(url string) error {
	var site model.Site
	if err := r.db.Where("url = ?", url).First(&site).Error; err != nil {
		if IsNotFound(err) {
			return nil
		}
		return err
	}
	return r.Delete(&site)
}

func (r *SiteRepo) FindByURL(url string) (*model.Site, error) {
	var site model.Site
	if err := r.db.Where("url = ?", url).First(&site).Error; err != nil {
		return nil, err
	}
	return &site, nil
}

func (r *SiteRepo) FindByID(id uint) (*model.Site, error) {
	var site model.Site
	if err := r.db.First(&site, id).Error; err != nil {
		return nil, err
	}
	return &site, nil
}

func (r *SiteRepo) FindAll() ([]model.Site, error) {
	var sites []model.Site
	err := r.db.Find(&sites).Error
	return sites, err
}

func (r *SiteRepo) ExistsByURL(url string) (bool, error) {
	var count int64
	err := r.db.Model(&model.Site{}).Where("url = ?", url).Count(&count).Error
	return count > 0, err
}

// TouchStatusTime updates only the status_time column for siteID. It is a
// scoped UPDATE rather than a full-row Save, so concurrent PageTasks
// sharing the same *model.Site can call it without racing on the entity
// itself or clobbering each other's writes to other fields.
func (r *SiteRepo) TouchStatusTime(siteID uint, t time.Time) error {
	return r.db.Model(&model.Site{}).Where("id = ?", siteID).Update("status_time", t).Error
}

// PageRepo persists model.Page rows.
type PageRepo struct{ db *gorm.DB }

func (r *PageRepo) Save(page *model.Page) error {
	return r.db.Save(page).Error
}

func (r *PageRepo) Delete(page *model.Page) error {
	return r.db.Select("Indexes").Delete(page).Error
}

func (r *PageRepo) FindByID(id uint) (*model.Page, error) {
	var page model.Page
	if err := r.db.First(&page, id).Error; err != nil {
		return nil, err
	}
	return &page, nil
}

func (r *PageRepo) FindByPath(siteID uint, path string) (*model.Page, error) {
	var page model.Page
	if err := r.db.Where("site_id = ? AND path = ?", siteID, path).First(&page).Error; err != nil {
		return nil, err
	}
	return &page, nil
}

func (r *PageRepo) FindAllBySite(siteID uint) ([]model.Page, error) {
	var pages []model.Page
	err := r.db.Where("site_id = ?", siteID).Find(&pages).Error
	return pages, err
}

func (r *PageRepo) CountBySite(siteID uint) (int64, error) {
	var count int64
	err := r.db.Model(&model.Page{}).Where("site_id = ?", siteID).Count(&count).Error
	return count, err
}

// LemmaRepo persists model.Lemma rows.
type LemmaRepo struct{ db *gorm.DB }

func (r *LemmaRepo) Save(lemma *model.Lemma) error {
	return r.db.Save(lemma).Error
}

func (r *LemmaRepo) DeleteByID(id uint) error {
	return r.db.Delete(&model.Lemma{}, id).Error
}

func (r *LemmaRepo) FindByLemmaAndSite(text string, site *model.Site) (*model.Lemma, error) {
	return r.FindByLemmaAndSiteID(text, site.ID)
}

func (r *LemmaRepo) FindByLemmaAndSiteID(text string, siteID uint) (*model.Lemma, error) {
	var lemma model.Lemma
	if err := r.db.Where("site_id = ? AND lemma = ?", siteID, text).First(&lemma).Error; err != nil {
		return nil, err
	}
	return &lemma, nil
}

func (r *LemmaRepo) FindBySite(siteID uint) ([]model.Lemma, error) {
	var lemmas []model.Lemma
	err := r.db.Where("site_id = ?", siteID).Find(&lemmas).Error
	return lemmas, err
}

// FindByLemmaIn returns all Lemma rows (any site) whose text is in names.
func (r *LemmaRepo) FindByLemmaIn(names []string) ([]model.Lemma, error) {
	var lemmas []model.Lemma
	err := r.db.Where("lemma IN ?", names).Find(&lemmas).Error
	return lemmas, err
}

// FindByLemmaInAndSiteURL returns Lemma rows whose text is in names,
// scoped to the site identified by siteURL.
func (r *LemmaRepo) FindByLemmaInAndSiteURL(names []string, siteURL string) ([]model.Lemma, error) {
	var lemmas []model.Lemma
	err := r.db.Joins("JOIN sites ON sites.id = lemmas.site_id").
		Where("lemmas.lemma IN ? AND sites.url = ?", names, siteURL).
		Find(&lemmas).Error
	return lemmas, err
}

func (r *LemmaRepo) CountBySiteID(siteID uint) (int64, error) {
	var count int64
	err := r.db.Model(&model.Lemma{}).Where("site_id = ?", siteID).Count(&count).Error
	return count, err
}

func (r *LemmaRepo) HasAny() (bool, error) {
	var count int64
	err := r.db.Model(&model.Lemma{}).Limit(1).Count(&count).Error
	return count > 0, err
}

// IndexRepo persists model.Index rows.
type IndexRepo struct{ db *gorm.DB }

func (r *IndexRepo) Save(idx *model.Index) error {
	return r.db.Save(idx).Error
}

func (r *IndexRepo) SaveAll(idxs []model.Index) error {
	if len(idxs) == 0 {
		return nil
	}
	return r.db.Save(idxs).Error
}

func (r *IndexRepo) DeleteByID(id uint) error {
	return r.db.Delete(&model.Index{}, id).Error
}

func (r *IndexRepo) FindByID(id uint) (*model.Index, error) {
	var idx model.Index
	if err := r.db.First(&idx, id).Error; err != nil {
		return nil, err
	}
	return &idx, nil
}

// FindByLemmaAndPageSite returns the Index rows for lemma restricted to
// pages belonging to siteID.
func (r *IndexRepo) FindByLemmaAndPageSite(lemmaID, siteID uint) ([]model.Index, error) {
	var idxs []model.Index
	err := r.db.Joins("JOIN pages ON pages.id = indexes.page_id").
		Where("indexes.lemma_id = ? AND pages.site_id = ?", lemmaID, siteID).
		Find(&idxs).Error
	return idxs, err
}

// CountDistinctByLemmaAndPageSite returns the number of distinct pages on
// siteID that carry an Index row for lemmaID — the df in the IDF formula.
func (r *IndexRepo) CountDistinctByLemmaAndPageSite(lemmaID, siteID uint) (int64, error) {
	var count int64
	err := r.db.Table("indexes").
		Joins("JOIN pages ON pages.id = indexes.page_id").
		Where("indexes.lemma_id = ? AND pages.site_id = ?", lemmaID, siteID).
		Distinct("indexes.page_id").
		Count(&count).Error
	return count, err
}
