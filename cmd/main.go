package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ephysio/kwikstore/cmd/create"
	"github.com/ephysio/kwikstore/cmd/record"
	"github.com/ephysio/kwikstore/utils"
	"github.com/ephysio/kwikstore/utils/log"
)

// flagPrintVersion set flag to show current kwikstore version.
var flagPrintVersion bool

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	// c is the root command.
	c := &cobra.Command{
		Use:   "kwikstore",
		Short: "Record multi-source electrophysiology data into Kwik files",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Print version if specified.
			if flagPrintVersion {
				log.Log(log.INFO, "version: %+v", utils.Tag)
				log.Log(log.INFO, "commit hash: %+v", utils.GitHash)
				log.Log(log.INFO, "utc build time: %+v", utils.BuildStamp)
				return nil
			}
			// Print information regarding usage.
			return cmd.Usage()
		},
	}

	// Adds subcommands and version flag.
	c.AddCommand(create.Cmd)
	c.AddCommand(record.Cmd)
	c.Flags().BoolVarP(&flagPrintVersion, "version", "v", false, "show the version info and exit")
	return c
}

// Execute builds the command tree and executes commands.
func Execute() error {
	defer log.Sync()
	return NewRootCmd().Execute()
}
