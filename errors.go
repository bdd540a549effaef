package blockfs

import "errors"

// Package-specific error variables, usable with errors.Is(). These are the
// user-recoverable category of error (spec §7 category 1): every other
// failure mode (resource exhaustion, invariant violation) panics instead
// of returning one of these.
var (
	// ErrNotFound is returned when a path component does not exist.
	ErrNotFound = errors.New("blockfs: no such file or directory")

	// ErrExists is returned by link/create operations when the target
	// name already resolves to an inode.
	ErrExists = errors.New("blockfs: name already exists")

	// ErrNotDirectory is returned when a non-final path component, or an
	// operation that requires one, is not a directory.
	ErrNotDirectory = errors.New("blockfs: not a directory")

	// ErrIsDirectory is returned when an operation that refuses
	// directories (e.g. adding a hard link with Link) is given one.
	ErrIsDirectory = errors.New("blockfs: is a directory")

	// ErrWrongType is returned when an operation is attempted on an
	// inode of an incompatible type (e.g. writing to a directory through
	// a File).
	ErrWrongType = errors.New("blockfs: wrong inode type for operation")

	// ErrTooLarge is returned when an offset/length pair would exceed
	// MAXFILE*BSIZE, or would overflow.
	ErrTooLarge = errors.New("blockfs: offset or size out of range")

	// ErrNotEmpty is returned when unlinking a directory that still
	// contains entries other than "." and "..".
	ErrNotEmpty = errors.New("blockfs: directory not empty")

	// ErrNoDevice is returned when a device inode names a major number
	// with no registered entry in the device switch table.
	ErrNoDevice = errors.New("blockfs: no such device")

	// ErrInvalidName is returned for an empty final path component, and
	// when Unlink is asked to remove "." or "..".
	ErrInvalidName = errors.New("blockfs: invalid name")

	// ErrInvalidSuper is returned when block 1 does not parse as a valid
	// superblock.
	ErrInvalidSuper = errors.New("blockfs: invalid superblock")
)
