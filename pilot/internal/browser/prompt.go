package browser

import (
	"context"
	"slices"

	"github.com/hazyhaar/tabpilot/host"
)

// Prompter asks the user for consent and file names.
type Prompter interface {
	// ConfirmPermissions returns true when the user grants perms.
	ConfirmPermissions(ctx context.Context, perms []host.Permission) (bool, error)
	// SaveAs returns the file name to save under, starting from suggested.
	SaveAs(ctx context.Context, suggested string) (string, error)
}

// StaticPrompter answers without interaction: it grants only the listed
// permissions and always keeps the suggested file name.
type StaticPrompter struct {
	Allow []host.Permission
}

func (p StaticPrompter) ConfirmPermissions(_ context.Context, perms []host.Permission) (bool, error) {
	for _, want := range perms {
		if !slices.Contains(p.Allow, want) {
			return false, nil
		}
	}
	return true, nil
}

func (p StaticPrompter) SaveAs(_ context.Context, suggested string) (string, error) {
	return suggested, nil
}
