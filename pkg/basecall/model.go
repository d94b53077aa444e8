// Package basecall turns raw signal into called sequences.
//
// A model is selected either by complex ("fast", "hac@v4.2.0") or by a
// filesystem path to a model directory. The selection's canonical name
// is recorded in every output artifact and compared verbatim on
// resume.
package basecall

import (
	"os"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// Variant names accepted in a model complex, fastest to most accurate.
const (
	VariantFast = "fast"
	VariantHac  = "hac"
	VariantSup  = "sup"
)

var versionPattern = regexp.MustCompile(`^v\d+\.\d+\.\d+$`)

// Selection is a resolved model choice.
type Selection struct {
	// Variant is one of the complex names, or empty for a path model.
	Variant string
	// Version is the pinned complex version, empty when unpinned.
	Version string
	// Path is the model directory for a path selection.
	Path string
}

// String returns the canonical name recorded in artifact headers.
// Resume compares this string for equality, so it must be stable.
func (s Selection) String() string {
	if s.Path != "" {
		return s.Path
	}
	if s.Version != "" {
		return s.Variant + "@" + s.Version
	}
	return s.Variant
}

// ParseSelection resolves a model argument. Anything containing a path
// separator is treated as a model directory and must exist; otherwise
// the argument must be a known complex, optionally pinned to a
// version.
func ParseSelection(arg string) (Selection, error) {
	if arg == "" {
		return Selection{}, errors.New("model argument is empty")
	}
	if strings.ContainsRune(arg, os.PathSeparator) || strings.HasPrefix(arg, ".") {
		info, err := os.Stat(arg)
		if err != nil {
			return Selection{}, errors.Wrapf(err, "model path %s", arg)
		}
		if !info.IsDir() {
			return Selection{}, errors.Errorf("model path %s is not a directory", arg)
		}
		return Selection{Path: arg}, nil
	}

	variant := arg
	version := ""
	if at := strings.IndexByte(arg, '@'); at >= 0 {
		variant, version = arg[:at], arg[at+1:]
		if !versionPattern.MatchString(version) {
			return Selection{}, errors.Errorf("invalid model version %q, want vX.Y.Z", version)
		}
	}
	switch variant {
	case VariantFast, VariantHac, VariantSup:
	default:
		return Selection{}, errors.Errorf("unknown model complex %q", variant)
	}
	return Selection{Variant: variant, Version: version}, nil
}

// Model carries the decode parameters derived from a selection.
type Model struct {
	Name string
	// Stride is the number of signal samples per block.
	Stride int
	// DefaultChunk and DefaultOverlap size the chunking window when the
	// caller does not override them.
	DefaultChunk   int
	DefaultOverlap int
}

// Load materialises the model behind a selection. Complex variants map
// to built-in parameter sets; path models use the hac parameters under
// the directory's name.
func Load(sel Selection) (Model, error) {
	name := sel.String()
	variant := sel.Variant
	if sel.Path != "" {
		variant = VariantHac
	}
	switch variant {
	case VariantFast:
		return Model{Name: name, Stride: 4, DefaultChunk: 1000, DefaultOverlap: 100}, nil
	case VariantHac:
		return Model{Name: name, Stride: 5, DefaultChunk: 2000, DefaultOverlap: 200}, nil
	case VariantSup:
		return Model{Name: name, Stride: 6, DefaultChunk: 4000, DefaultOverlap: 400}, nil
	default:
		return Model{}, errors.Errorf("unknown model variant %q", variant)
	}
}
