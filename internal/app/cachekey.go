package app

import (
	"encoding/binary"
	"encoding/hex"
	"os"
	"sort"

	"github.com/zeebo/xxh3"

	"github.com/corey/shapegrep/internal/ports"
)

// cacheKey fingerprints a request and the files it would read (path, size,
// modification time). Any change to either yields a new key. Unreadable
// files are folded in as such, so a file appearing later also changes it.
func cacheKey(req ports.SearchRequest, settings string) string {
	h := xxh3.New()
	var num [8]byte
	writeInt := func(n int64) {
		binary.LittleEndian.PutUint64(num[:], uint64(n))
		h.Write(num[:])
	}
	writeString := func(s string) {
		writeInt(int64(len(s)))
		h.Write([]byte(s))
	}
	writeBool := func(b bool) {
		if b {
			writeInt(1)
		} else {
			writeInt(0)
		}
	}

	writeString(settings)
	writeString(string(req.Mode))
	writeString(string(req.Language))
	writeBool(req.CaseInsensitive)
	writeBool(req.TextFallback)
	writeInt(int64(len(req.Queries)))
	for _, q := range req.Queries {
		writeString(q)
	}

	files := append([]string(nil), req.Files...)
	sort.Strings(files)
	writeInt(int64(len(files)))
	for _, f := range files {
		writeString(f)
		info, err := os.Stat(f)
		if err != nil {
			writeInt(-1)
			continue
		}
		writeInt(info.Size())
		writeInt(info.ModTime().UnixNano())
	}

	return hex.EncodeToString(h.Sum(nil))
}
