package helpers

import (
	"github.com/spf13/cobra"

	"gitstack.dev/gitstack/internal/runtime"
)

// Run opens a runtime.Context rooted at the current working directory
// and hands it to fn, the way the teacher's own helpers.Run resolves
// its engine before invoking a command body.
func Run(cmd *cobra.Command, fn func(ctx *runtime.Context) error) error {
	rc, err := runtime.Open(cmd.Context(), ".")
	if err != nil {
		return err
	}
	defer rc.Log.Close()
	return fn(rc)
}
