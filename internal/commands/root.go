package commands

import (
	"github.com/spf13/cobra"

	"github.com/idelchi/gogen/pkg/cobraext"
	"github.com/idelchi/recrypt/internal/config"
)

// NewRootCommand creates the root command with common configuration.
// Connection settings come from POSTGRES_* and DB_DRIVER, the secret from MEDIA_ENCRYPTION_KEY,
// and every flag can also be set as RECRYPT_<FLAG>.
func NewRootCommand(cfg *config.Config, version string) *cobra.Command {
	root := cobraext.NewDefaultRootCommand(version)

	root.Use = "recrypt [flags] command [flags]"
	root.Short = "Media re-encryption utility"
	root.Long = `Converts stored media from legacy AES-CBC/HMAC tokens to chunked AES-256-GCM payloads.
Also decodes single payloads for diagnosis and prepares videos whose codecs frame readers reject.`

	root.PersistentFlags().StringP("secret", "k", "", "Media encryption secret, defaults to $MEDIA_ENCRYPTION_KEY")
	root.PersistentFlags().BoolP("show", "s", false, "Show the configuration and exit")
	root.PersistentFlags().BoolP("quiet", "q", false, "Suppress non-error output")
	root.PersistentFlags().Bool("verbose", false, "Log every conversion step")
	root.PersistentFlags().Bool("stats", false, "Print statistics after the run")

	root.AddCommand(NewMigrateCommand(cfg), NewInspectCommand(cfg), NewCodecCommand(cfg))

	return root
}
