package inference

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ModelFiles names the on-disk files backing a detector.
type ModelFiles struct {
	// Model is the network definition, a .onnx or .cfg file.
	Model string
	// Weights is the trained weights file. Self-contained formats such as
	// ONNX leave it empty.
	Weights string
	// Names is the class label list, one name per line. Optional.
	Names string
}

// ResolveModelFiles sorts up to three file paths into their roles, so callers
// can pass model, weights and names in any order.
//
// Roles are assigned by extension first. Paths with an unknown extension are
// assigned by file size as a fallback: the weights file is by far the largest
// of the three and the names file the smallest.
func ResolveModelFiles(paths ...string) (ModelFiles, error) {
	if len(paths) == 0 || len(paths) > 3 {
		return ModelFiles{}, errors.Wrapf(ErrConfiguration,
			"expected 1 to 3 model files, got %d", len(paths))
	}

	var files ModelFiles
	var unknown []string

	assign := func(slot *string, path, role string) error {
		if *slot != "" {
			return errors.Wrapf(ErrConfiguration,
				"both %q and %q look like the %s file", *slot, path, role)
		}
		*slot = path
		return nil
	}

	for _, path := range paths {
		var err error
		switch strings.ToLower(filepath.Ext(path)) {
		case ".onnx", ".cfg":
			err = assign(&files.Model, path, "model")
		case ".weights":
			err = assign(&files.Weights, path, "weights")
		case ".names", ".txt":
			err = assign(&files.Names, path, "names")
		default:
			unknown = append(unknown, path)
		}
		if err != nil {
			return ModelFiles{}, err
		}
	}

	if len(unknown) > 0 {
		if err := assignBySize(&files, unknown); err != nil {
			return ModelFiles{}, err
		}
	}

	if files.Model == "" {
		return ModelFiles{}, errors.Wrap(ErrConfiguration, "no model file given")
	}
	if info, err := os.Stat(files.Model); err != nil {
		return ModelFiles{}, errors.Wrapf(ErrConfiguration, "cannot read model file %q", files.Model)
	} else if info.Size() == 0 {
		return ModelFiles{}, errors.Wrapf(ErrConfiguration, "model file %q is empty", files.Model)
	}

	return files, nil
}

// assignBySize fills the remaining roles from paths whose extension gave no
// hint. Candidates are ordered by descending file size and the open roles are
// filled weights, model, names, in that order.
func assignBySize(files *ModelFiles, unknown []string) error {
	type candidate struct {
		path string
		size int64
	}
	cands := make([]candidate, 0, len(unknown))
	for _, path := range unknown {
		info, err := os.Stat(path)
		if err != nil {
			return errors.Wrapf(ErrConfiguration, "cannot read file %q", path)
		}
		cands = append(cands, candidate{path: path, size: info.Size()})
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].size > cands[j].size })

	for _, c := range cands {
		switch {
		case files.Weights == "":
			files.Weights = c.path
		case files.Model == "":
			files.Model = c.path
		case files.Names == "":
			files.Names = c.path
		default:
			return errors.Wrapf(ErrConfiguration, "no role left for file %q", c.path)
		}
	}
	return nil
}

// LoadNames reads a class names file, one label per line. Blank lines and
// surrounding whitespace are ignored.
func LoadNames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(ErrConfiguration, "cannot open names file %q", path)
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		names = append(names, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(ErrConfiguration, "cannot read names file %q", path)
	}
	return names, nil
}
