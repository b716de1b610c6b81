package convert

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Faultbox/meshconv/pkg/grf"
)

// ErrInput is returned for input specs that cannot be resolved.
var ErrInput = errors.New("invalid input")

const archiveSep = ".grf:"

// Input names a model file on disk or inside a GRF archive.
type Input struct {
	Archive string // empty for plain files
	Path    string
}

// ParseInput splits "archive.grf:data/model/x.rsm" into its parts. Anything
// without the archive separator is a plain file path.
func ParseInput(arg string) (Input, error) {
	if arg == "" {
		return Input{}, fmt.Errorf("%w: empty path", ErrInput)
	}
	i := strings.Index(strings.ToLower(arg), archiveSep)
	if i < 0 {
		return Input{Path: arg}, nil
	}
	in := Input{
		Archive: arg[:i+len(archiveSep)-1],
		Path:    arg[i+len(archiveSep):],
	}
	if in.Path == "" {
		return Input{}, fmt.Errorf("%w: no entry named after %s", ErrInput, in.Archive)
	}
	return in, nil
}

// String returns the input as it was given.
func (in Input) String() string {
	if in.Archive == "" {
		return in.Path
	}
	return in.Archive + ":" + in.Path
}

// Read returns the model bytes.
func (in Input) Read() ([]byte, error) {
	if in.Archive == "" {
		return os.ReadFile(in.Path)
	}
	archive, err := grf.Open(in.Archive)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", in.Archive, err)
	}
	defer archive.Close()
	return archive.Read(in.Path)
}
