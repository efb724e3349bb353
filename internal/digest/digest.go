// Package digest computes content-addressed cache keys for rendered
// notation. The digest covers every input that can change the rendered
// artifact: the exact span source, its kind, and the active rendering
// parameters. It deliberately excludes anything volatile (paths, times,
// process state) so identical notation hashes identically across runs
// and machines.
package digest

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strconv"

	"github.com/scivant/go-mdsci/internal/scan"
)

// Params are the rendering parameters that participate in the digest.
type Params struct {
	Mode     string  // renderer mode, e.g. "latex"
	Scale    float64 // zoom applied by the SVG conversion
	Preamble string  // document-wide preamble injected before every render
}

// Digest is an opaque fingerprint used solely as a cache key.
type Digest [sha256.Size]byte

// Hex returns the lowercase hex form, used for artifact file names and
// the cache index.
func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

// New computes the digest for one notation span under the given
// parameters. Deterministic: same logical inputs always produce the
// same digest. Each field is prefixed with its length so that field
// boundaries cannot alias ("ab"+"c" never hashes like "a"+"bc").
func New(kind scan.Kind, source string, p Params) Digest {
	h := sha256.New()
	writeField(h.Write, []byte{byte(kind)})
	writeField(h.Write, []byte(source))
	writeField(h.Write, []byte(p.Mode))
	writeField(h.Write, []byte(strconv.FormatFloat(p.Scale, 'g', -1, 64)))
	writeField(h.Write, []byte(p.Preamble))

	var d Digest
	h.Sum(d[:0])
	return d
}

func writeField(w func([]byte) (int, error), b []byte) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(b)))
	_, _ = w(n[:])
	_, _ = w(b)
}
