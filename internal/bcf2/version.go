package bcf2

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// Magic is the three-byte file signature preceding the version.
var Magic = []byte("BCF")

const (
	// AllowedMajorVersion is the only major version this package decodes.
	AllowedMajorVersion = 2
	// MinMinorVersion is the oldest supported minor version.
	MinMinorVersion = 1
	// MaxHeaderSize bounds the declared header length (128 MiB).
	MaxHeaderSize = 0x08000000
)

// Version is the major/minor pair following the magic.
type Version struct {
	Major int
	Minor int
}

func (v Version) String() string {
	return fmt.Sprintf("BCF%d.%d", v.Major, v.Minor)
}

// ReadVersion consumes the magic and version bytes. ErrNotBCF2 is returned if
// the magic does not match.
func ReadVersion(r io.Reader) (Version, error) {
	var buf [5]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return Version{}, ErrNotBCF2
		}
		return Version{}, fmt.Errorf("read BCF magic: %w", err)
	}
	if !bytes.Equal(buf[:3], Magic) {
		return Version{}, ErrNotBCF2
	}
	return Version{Major: int(buf[3]), Minor: int(buf[4])}, nil
}

// checkVersion applies the major/minor version gate.
func checkVersion(v Version) error {
	if v.Major != AllowedMajorVersion {
		return fmt.Errorf("BCF2 codec can only process BCF2 files, this file has major version %d", v.Major)
	}
	if v.Minor < MinMinorVersion {
		return fmt.Errorf("BCF2 codec can only process BCF2 files with minor version >= %d but this file has minor version %d", MinMinorVersion, v.Minor)
	}
	return nil
}

// Probe reports whether r starts with a supported BCF2 signature. It consumes
// the magic and version bytes only. The version is returned whenever the
// magic matched, even if it is not supported.
func Probe(r io.Reader) (Version, bool) {
	v, err := ReadVersion(r)
	if err != nil {
		return Version{}, false
	}
	return v, checkVersion(v) == nil
}

// CanDecode reports whether the file at path is an uncompressed BCF2 stream
// or a BGZF/gzip-compressed one. Any error opening or reading it yields false.
func CanDecode(path string) bool {
	_, ok := ProbeFile(path)
	return ok
}

// ProbeFile opens path, unwraps any compression and probes the signature.
func ProbeFile(path string) (Version, bool) {
	f, err := os.Open(path)
	if err != nil {
		return Version{}, false
	}
	defer f.Close()

	r, closer, err := decompress(f, 1)
	if err != nil {
		return Version{}, false
	}
	if closer != nil {
		defer closer.Close()
	}
	return Probe(r)
}
