// Declarations of the peptide bioactivity pipeline's parameters and the
// workflow metadata handed to the hosting platform.

package params

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"go.uber.org/multierr"
)

var ErrMissingParameter = errors.New("missing pipeline parameter")
var ErrInvalidParameter = errors.New("invalid pipeline parameter")

const remoteScheme = "latch://"

type Parameter struct {
	Name         string    `json:"name"`
	Type         ParamType `json:"type"`
	SectionTitle string    `json:"section_title,omitempty"`
	Description  string    `json:"description"`
}

type Author struct {
	Name string `json:"name"`
}

type RuntimeResources struct {
	CPUs       int `json:"cpus"`
	MemoryGiB  int `json:"memory"`
	StorageGiB int `json:"storage_gib"`
}

type Metadata struct {
	DisplayName      string           `json:"display_name"`
	Author           Author           `json:"author"`
	Parameters       []Parameter      `json:"parameters"`
	RuntimeResources RuntimeResources `json:"runtime_resources"`
	LogDir           string           `json:"log_dir"`
}

// Parameters returns the pipeline parameters in declaration order.
func Parameters() []Parameter {
	return []Parameter{
		{
			Name:         "input_fastas",
			Type:         ParamTypeDir,
			SectionTitle: "Input/output options",
			Description:  "Directory of input FASTA peptides for bioactivity prediction.",
		},
		{
			Name:        "outdir",
			Type:        ParamTypeOutputDir,
			Description: "The output directory where the results will be saved. You have to use absolute paths to storage on Cloud infrastructure.",
		},
		{
			Name:         "peptides_db",
			Type:         ParamTypeFile,
			SectionTitle: "Databases",
			Description:  "FASTA of known peptides for comparison to input peptides.",
		},
		{
			Name:        "models_list",
			Type:        ParamTypeFile,
			Description: "TXT file of list of models that are located in the models_dir that you want to be run for bioactivity prediction.",
		},
		{
			Name:        "models_dir",
			Type:        ParamTypeDir,
			Description: "Directory of ML classification models to predict bioactivity.",
		},
	}
}

func DefaultMetadata() Metadata {
	return Metadata{
		DisplayName: "peptide_bioactivity_predictor",
		Author:      Author{Name: "Elizabeth McDaniel"},
		Parameters:  Parameters(),
		RuntimeResources: RuntimeResources{
			CPUs:       16,
			MemoryGiB:  20,
			StorageGiB: 100,
		},
		LogDir: remoteScheme + "/your_log_dir",
	}
}

// Lookup finds a declared parameter by name.
func Lookup(name string) (Parameter, bool) {
	for _, p := range Parameters() {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

// Validate checks that every declared parameter has a value that is either a
// remote reference or an absolute path, and that no undeclared names are given.
// All problems are reported together.
func Validate(values map[string]string) error {
	var errs []error

	for _, p := range Parameters() {
		v, ok := values[p.Name]
		if !ok || strings.TrimSpace(v) == "" {
			errs = append(errs, fmt.Errorf("%w: %s", ErrMissingParameter, p.Name))
			continue
		}
		if !strings.HasPrefix(v, remoteScheme) && !path.IsAbs(v) {
			errs = append(errs, fmt.Errorf("%w: %s must be a %s reference or an absolute path, got %q",
				ErrInvalidParameter, p.Name, remoteScheme, v))
		}
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, ok := Lookup(name); !ok {
			errs = append(errs, fmt.Errorf("%w: %s is not declared", ErrInvalidParameter, name))
		}
	}

	return multierr.Combine(errs...)
}
