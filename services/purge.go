package services

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"graded-cards-scraper/models"
	"graded-cards-scraper/utils"
)

// ErrOutsideBaseDir is returned for image paths that resolve outside the
// images base directory; such files are never touched.
var ErrOutsideBaseDir = errors.New("path escapes the images directory")

// PurgeReport counts what a purge did.
type PurgeReport struct {
	Listings    int
	Removed     int
	Missing     int
	Refused     int
	Failed      int
	DirsRemoved int
}

// ImagePurger deletes the stored images of rejected rows. It is safe to run
// repeatedly over the same rejections: files that are already gone are
// counted, not reported as errors.
type ImagePurger struct {
	baseDir string
	logger  *utils.Logger
}

func NewImagePurger(baseDir string, logger *utils.Logger) *ImagePurger {
	return &ImagePurger{baseDir: baseDir, logger: logger}
}

// Purge removes every image of the given rejections and then any listing
// directory left empty. Per-file failures are collected and returned
// together after all rejections have been processed.
func (p *ImagePurger) Purge(rejected []models.Rejection) (PurgeReport, error) {
	var report PurgeReport
	var errs []error

	base, err := filepath.Abs(p.baseDir)
	if err != nil {
		return report, fmt.Errorf("purge: resolve base dir: %w", err)
	}

	dirs := make(map[string]struct{})
	for _, rej := range rejected {
		if len(rej.Row.ImagePaths) == 0 {
			continue
		}
		report.Listings++
		p.logger.Warn("[purge] Deleting %d image(s) of %s/%s, reason %s",
			len(rej.Row.ImagePaths), rej.Row.Source, rej.ListingID, rej.Reason)

		for _, rel := range rej.Row.ImagePaths {
			full, err := p.resolve(base, rel)
			if err != nil {
				report.Refused++
				p.logger.Error("[purge] Refusing %q for %s: %v", rel, rej.ListingID, err)
				errs = append(errs, fmt.Errorf("%s: %q: %w", rej.ListingID, rel, err))
				continue
			}

			switch err := os.Remove(full); {
			case err == nil:
				report.Removed++
				dirs[filepath.Dir(full)] = struct{}{}
			case os.IsNotExist(err):
				report.Missing++
				p.logger.Debug("[purge] Already gone: %s", rel)
			default:
				report.Failed++
				p.logger.Error("[purge] Could not delete %s: %v", rel, err)
				errs = append(errs, fmt.Errorf("%s: %w", rej.ListingID, err))
			}
		}
	}

	for dir := range dirs {
		report.DirsRemoved += removeEmptyDirs(base, dir)
	}

	p.logger.Info("[purge] %d listings: removed %d files, %d already missing, %d refused, %d failed",
		report.Listings, report.Removed, report.Missing, report.Refused, report.Failed)
	return report, errors.Join(errs...)
}

func (p *ImagePurger) resolve(base, rel string) (string, error) {
	if rel == "" || filepath.IsAbs(rel) {
		return "", ErrOutsideBaseDir
	}
	full := filepath.Join(base, filepath.FromSlash(rel))
	r, err := filepath.Rel(base, full)
	if err != nil || r == "." || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", ErrOutsideBaseDir
	}
	return full, nil
}

// removeEmptyDirs removes dir and its parents while they are empty, stopping
// at base. It returns how many directories were removed.
func removeEmptyDirs(base, dir string) int {
	removed := 0
	for dir != base && strings.HasPrefix(dir, base+string(filepath.Separator)) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			break
		}
		if err := os.Remove(dir); err != nil {
			break
		}
		removed++
		dir = filepath.Dir(dir)
	}
	return removed
}
