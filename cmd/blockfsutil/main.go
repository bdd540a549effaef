// Command blockfsutil builds, inspects and checks blockfs images.
//
// Grounded on the teacher's cmd/sqfs/main.go (same ls/cat verb shape,
// same "open the image, run one operation, close it" flow), rebuilt
// on github.com/spf13/cobra instead of a hand-rolled os.Args switch —
// cobra is the CLI framework the rest of the pack reaches for whenever
// a repo grows more than a couple of subcommands.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/blockfs/blockfs"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "blockfsutil",
		Short: "Build, inspect and check blockfs images",
	}

	root.AddCommand(
		mkfsCmd(),
		fsckCmd(),
		lsCmd(),
		catCmd(),
	)
	root.AddCommand(mountCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func mkfsCmd() *cobra.Command {
	var blocks, inodes uint32
	cmd := &cobra.Command{
		Use:   "mkfs <image>",
		Short: "Create a fresh blockfs image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if blocks == 0 {
				blocks = 1024
			}
			dev, err := blockfs.CreateFileDevice(args[0], blocks)
			if err != nil {
				return err
			}
			defer dev.Close()

			opts := []blockfs.MkfsOption{blockfs.WithTotalBlocks(blocks)}
			if inodes != 0 {
				opts = append(opts, blockfs.WithInodeCount(inodes))
			}

			sb, err := blockfs.Mkfs(dev, opts...)
			if err != nil {
				return err
			}
			fmt.Printf("created blockfs image: %d blocks, %d inodes\n", sb.Size, sb.NInodes)
			return nil
		},
	}
	cmd.Flags().Uint32Var(&blocks, "blocks", 0, "total image size in blocks (default 1024)")
	cmd.Flags().Uint32Var(&inodes, "inodes", 0, "inode slot count (default 200)")
	return cmd
}

func fsckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fsck <image>",
		Short: "Check an image for consistency",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dev, err := blockfs.OpenFileDevice(args[0], false)
			if err != nil {
				return err
			}
			defer dev.Close()

			report, err := blockfs.Fsck(dev)
			if err != nil {
				return err
			}
			if report.Clean() {
				fmt.Println("clean")
				return nil
			}
			for _, b := range report.BitmapMismatches {
				fmt.Printf("bitmap mismatch: block %d\n", b)
			}
			for inum, pair := range report.NlinkMismatches {
				fmt.Printf("nlink mismatch: inode %d: on-disk=%d counted=%d\n", inum, pair[0], pair[1])
			}
			return fmt.Errorf("found %d bitmap and %d nlink mismatches",
				len(report.BitmapMismatches), len(report.NlinkMismatches))
		},
	}
}

func lsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls <image> [path]",
		Short: "List a directory's contents",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/"
			if len(args) == 2 {
				path = args[1]
			}

			fsys, dev, err := openMounted(args[0])
			if err != nil {
				return err
			}
			defer dev.Close()

			pr := fsys.NewProc()
			ip, err := fsys.Stat(pr, path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			fsys.IC.Ilock(ip)
			if ip.Type != blockfs.TypeDir {
				fsys.IC.Iunlock(ip)
				fsys.IC.Iput(ip)
				return fmt.Errorf("%s: not a directory", path)
			}
			entries := fsys.IC.ReadDirEntries(ip)
			fsys.IC.Iunlock(ip)
			fsys.IC.Iput(ip)

			for _, e := range entries {
				fmt.Println(e.Name)
			}
			return nil
		},
	}
}

func catCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat <image> <file>",
		Short: "Print a file's contents to stdout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fsys, dev, err := openMounted(args[0])
			if err != nil {
				return err
			}
			defer dev.Close()

			pr := fsys.NewProc()
			ip, err := fsys.Stat(pr, args[1])
			if err != nil {
				return fmt.Errorf("%s: %w", args[1], err)
			}

			f := fsys.OpenFile(ip)
			defer f.Close()

			buf := make([]byte, 4096)
			for {
				n, rerr := f.Read(buf)
				if n > 0 {
					if _, werr := os.Stdout.Write(buf[:n]); werr != nil {
						return werr
					}
				}
				if rerr == io.EOF {
					return nil
				}
				if rerr != nil {
					return rerr
				}
			}
		},
	}
}

func openMounted(path string) (*blockfs.FS, *blockfs.FileDevice, error) {
	dev, err := blockfs.OpenFileDevice(path, false)
	if err != nil {
		return nil, nil, err
	}
	fsys, err := blockfs.Mount(dev)
	if err != nil {
		dev.Close()
		return nil, nil, err
	}
	return fsys, dev, nil
}
