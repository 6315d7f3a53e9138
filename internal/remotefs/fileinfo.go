package remotefs

import (
	"os"
	"time"

	pkgsftp "github.com/pkg/sftp"
)

// AccessMode classifies a file by its owner permission bits.
type AccessMode string

const (
	AccessNone      AccessMode = "none"
	AccessRead      AccessMode = "read"
	AccessWrite     AccessMode = "write"
	AccessReadWrite AccessMode = "read_write"
)

// FileInfo is an immutable snapshot of one remote file's attributes.
type FileInfo struct {
	Size       int64
	Access     AccessMode
	AccessedAt time.Time
	ModifiedAt time.Time
}

func infoFromStat(fi os.FileInfo) FileInfo {
	info := FileInfo{
		Size:       fi.Size(),
		Access:     accessFromMode(fi.Mode()),
		ModifiedAt: fi.ModTime(),
	}

	// The SFTP attribute block carries the access time; os.FileInfo does not.
	if stat, ok := fi.Sys().(*pkgsftp.FileStat); ok && stat != nil {
		info.AccessedAt = time.Unix(int64(stat.Atime), 0)
	}

	return info
}

func accessFromMode(mode os.FileMode) AccessMode {
	readable := mode&0o400 != 0
	writable := mode&0o200 != 0

	switch {
	case readable && writable:
		return AccessReadWrite
	case readable:
		return AccessRead
	case writable:
		return AccessWrite
	default:
		return AccessNone
	}
}
