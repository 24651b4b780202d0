package board_downloader

import (
	"fmt"

	"github.com/isseis/go-huaban-board-downloader/filelock"
	hb "github.com/isseis/go-huaban-board-downloader/huaban_api"
)

// IoError reports a filesystem failure while storing an asset.
type IoError struct {
	Op   string
	Path string
	Err  error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IoError) Unwrap() error {
	return e.Err
}

// EmptyCollectionError is returned when a board lists no pins at all.
type EmptyCollectionError struct {
	BoardID hb.BoardID
}

func (e *EmptyCollectionError) Error() string {
	return fmt.Sprintf("no pins found in board %s", e.BoardID)
}

// LockHeldError is returned when another process is writing the same target directory.
// Owner is nil when the lock file could not be read.
type LockHeldError struct {
	Dir   string
	Owner *filelock.LockInfo
}

func (e *LockHeldError) Error() string {
	if e.Owner != nil {
		return fmt.Sprintf("another process (pid %d on %s since %s) is already downloading to %s",
			e.Owner.PID, e.Owner.Hostname, e.Owner.Timestamp, e.Dir)
	}
	return fmt.Sprintf("another process is already downloading to %s", e.Dir)
}
