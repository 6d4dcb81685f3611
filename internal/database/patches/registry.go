// Package patches holds the built-in data patches and their execution order.
package patches

import (
	_ "embed"

	"github.com/ksred/linkdesk/internal/database"
)

//go:embed patches.yaml
var manifestYAML []byte

// Manifest returns the embedded execution order
func Manifest() (database.Manifest, error) {
	return database.ParseManifest(manifestYAML)
}

// All returns every built-in patch
func All() []database.Patch {
	return []database.Patch{
		{
			ID:          "linkdesk.patches.v1_0.normalize_translation_languages",
			Description: "Lower-case language codes of stored translations",
			Run:         NormalizeTranslationLanguages,
		},
		{
			ID:          "linkdesk.patches.v1_0.seed_core_doctypes",
			Description: "Register the doctypes linkdesk ships with",
			Run:         SeedCoreDocTypes,
		},
		{
			ID:          "linkdesk.patches.v1_0.seed_tree_roots",
			Description: "Create the root group of every tree doctype",
			Run:         SeedTreeRoots,
		},
		{
			ID:          "linkdesk.patches.v1_0.rebuild_tree_bounds",
			Description: "Recompute nested set bounds of every tree doctype",
			Run:         RebuildTreeBounds,
		},
	}
}

// Install registers all built-in patches on runner and sets the embedded manifest
func Install(runner *database.PatchRunner) error {
	for _, p := range All() {
		if err := runner.Register(p); err != nil {
			return err
		}
	}

	manifest, err := Manifest()
	if err != nil {
		return err
	}
	runner.SetManifest(manifest)
	return nil
}
