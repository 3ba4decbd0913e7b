// Package prefs persists the one user preference gallery-sweep keeps:
// whether the onboarding instructions should be skipped.
package prefs

import "context"

// Store loads and saves the suppress-onboarding flag. A store with no
// saved value reports false.
type Store interface {
	Load(ctx context.Context) (bool, error)
	Save(ctx context.Context, suppressOnboarding bool) error
}
