package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fenilsonani/duster/internal/config"
	"github.com/fenilsonani/duster/internal/scanner"
	"github.com/fenilsonani/duster/pkg/utils"
)

// scanFlagSet holds the flags shared by scan, clean and analyze
type scanFlagSet struct {
	all        bool
	categories map[scanner.Category]*bool

	minAgeDays     int
	minSize        string
	projectAgeDays int
	path           string
	exclude        []string
}

func (f *scanFlagSet) register(cmd *cobra.Command) {
	if f.categories == nil {
		f.categories = make(map[scanner.Category]*bool, len(scanner.Priority))
		for _, c := range scanner.Priority {
			f.categories[c] = new(bool)
		}
	}

	fs := cmd.Flags()
	fs.BoolVar(&f.all, "all", false, "include every category (default when none is given)")
	fs.BoolVar(f.categories[scanner.CategoryTrash], "trash", false, "include trash")
	fs.BoolVar(f.categories[scanner.CategoryCache], "cache", false, "include application caches")
	fs.BoolVar(f.categories[scanner.CategoryBuild], "build", false, "include build artifacts of inactive projects")
	fs.BoolVar(f.categories[scanner.CategoryDuplicates], "duplicates", false, "include duplicate files")
	fs.BoolVar(f.categories[scanner.CategoryTemp], "temp", false, "include temporary files")
	fs.BoolVar(f.categories[scanner.CategoryDownloads], "downloads", false, "include old downloads")
	fs.BoolVar(f.categories[scanner.CategoryLarge], "large", false, "include large files")
	fs.BoolVar(f.categories[scanner.CategoryOld], "old", false, "include files not accessed recently")

	fs.IntVar(&f.minAgeDays, "min-age", 0, "days without access before a file is old")
	fs.StringVar(&f.minSize, "min-size", "", "size from which a file is large, e.g. 500MB (bare numbers are MB)")
	fs.IntVar(&f.projectAgeDays, "project-age", 0, "days without changes before a project's build artifacts are cleanable")
	fs.StringVarP(&f.path, "path", "p", "", "directory to scan (default: home directory)")
	fs.StringSliceVarP(&f.exclude, "exclude", "e", nil, "paths or patterns to skip (repeatable)")
}

// overrides converts the flags into config overrides
func (f *scanFlagSet) overrides() (config.Overrides, error) {
	var ov config.Overrides

	if !f.all {
		for _, c := range scanner.Priority {
			if set := f.categories[c]; set != nil && *set {
				ov.Categories = append(ov.Categories, c)
			}
		}
	}

	if f.minAgeDays < 0 {
		return ov, fmt.Errorf("--min-age must be >= 0")
	}
	if f.projectAgeDays < 0 {
		return ov, fmt.Errorf("--project-age must be >= 0")
	}
	ov.MinAge = time.Duration(f.minAgeDays) * scanner.Day
	ov.ProjectAge = time.Duration(f.projectAgeDays) * scanner.Day

	if f.minSize != "" {
		size, err := utils.ParseSize(f.minSize)
		if err != nil {
			return ov, fmt.Errorf("--min-size: %w", err)
		}
		ov.MinSize = size
	}

	ov.Root = f.path
	ov.Exclude = f.exclude
	return ov, nil
}
