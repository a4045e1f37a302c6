package importer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"mapload/internal/importmap"
)

// cacheHash returns the hex digest of the canonical (specifier, source,
// import-map) triple. The key covers every transformation input, so identical
// triples share a cache path and staleness cannot occur: any change to the
// source, the specifier or the import-map content yields a different path.
func cacheHash(specifier string, source string, im *importmap.ImportMap) string {
	h := sha256.New()
	h.Write([]byte(specifier))
	h.Write([]byte{0})
	h.Write([]byte(source))
	h.Write([]byte{0})
	h.Write(im.CanonicalJSON())
	return hex.EncodeToString(h.Sum(nil))
}

// cacheRelPath returns the cache file path relative to the cache root:
// `hash[0:2]/hash[2:4]/hash-basename`. The two-level sharding keeps any single
// directory's entry count near N/65536 for N cached files. Pure function of
// its inputs, deterministic across processes.
func cacheRelPath(specifier string, source string, im *importmap.ImportMap) string {
	hash := cacheHash(specifier, source, im)
	return fmt.Sprintf("%s/%s/%s-%s", hash[0:2], hash[2:4], hash, basenameOf(specifier))
}
