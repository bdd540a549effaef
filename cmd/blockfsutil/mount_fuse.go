//go:build fuse

package main

import (
	"fmt"

	"github.com/blockfs/blockfs"
	"github.com/spf13/cobra"
)

func mountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mount <image> <mountpoint>",
		Short: "Mount a blockfs image over FUSE",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dev, err := blockfs.OpenFileDevice(args[0], true)
			if err != nil {
				return err
			}
			defer dev.Close()

			fsys, err := blockfs.Mount(dev)
			if err != nil {
				return err
			}

			srv, err := blockfs.MountFUSE(fsys, args[1])
			if err != nil {
				return err
			}
			fmt.Printf("mounted %s at %s\n", args[0], args[1])
			srv.Wait()
			return nil
		},
	}
}
