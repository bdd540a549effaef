//go:build !fuse

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func mountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mount <image> <mountpoint>",
		Short: "Mount a blockfs image over FUSE (requires building with -tags fuse)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("blockfsutil: built without fuse support; rebuild with -tags fuse")
		},
	}
}
