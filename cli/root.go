// Package cli defines the labref command tree: the HTTP server and the
// offline lookup commands over the same reference set.
package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/giygas/labref-api/errors"
	"github.com/giygas/labref-api/reference"
	"github.com/giygas/labref-api/validation"
)

// options are the persistent flags shared by every command
type options struct {
	dir     string
	verbose int
}

// NewRootCmd builds a fresh command tree
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "labref",
		Short: "Lab reference ranges, biomaterial catalogs and study panels",
		Long: `labref resolves laboratory reference ranges by sex and age, classifies
measured values, and evaluates study panels against biomaterial catalogs.

Reference documents are read from --dir, else $LAB_REF_DIR, else the
built-in set.

Examples:
  labref serve                                     # Start the HTTP API
  labref reference venous_blood hemoglobin --sex male --age 30
  labref check venous_blood glucose=7.2 --age 45   # Classify values
  labref check --study blood_test hemoglobin=132 leukocytes=5 --sex female --age 30
  labref studies --test glucose                    # Studies declaring glucose
  labref init ./references                         # Copy the built-in set`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.dir, "dir", "d", "", "Reference directory (default $LAB_REF_DIR, else the built-in set)")
	root.PersistentFlags().CountVarP(&opts.verbose, "verbose", "v", "Increase log verbosity")

	root.AddCommand(
		newServeCmd(opts),
		newCheckCmd(opts),
		newReferenceCmd(opts),
		newStudiesCmd(opts),
		newBiomaterialsCmd(opts),
		newTypesCmd(opts),
		newInitCmd(),
	)
	return root
}

// Execute runs the command line and prints a failure with its hints
func Execute() error {
	err := NewRootCmd().Execute()
	if err != nil {
		pterm.Error.Println(err)
		if hints := errors.FlattenHints(err); hints != "" {
			pterm.Info.Println(hints)
		}
	}
	return err
}

// patientFlags are the --sex and --age flags of lookup commands
type patientFlags struct {
	sex string
	age string
}

func (f *patientFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.sex, "sex", "", "Patient sex key (male, female, ...)")
	cmd.Flags().StringVar(&f.age, "age", "", "Patient age in years")
}

func (f *patientFlags) patient() (reference.Patient, error) {
	v := validation.NewDataValidator()
	sex, err := v.ValidateSex(f.sex)
	if err != nil {
		return reference.Patient{}, err
	}
	age, err := v.ValidateAge(f.age)
	if err != nil {
		return reference.Patient{}, err
	}
	return reference.Patient{Sex: sex, Age: age}, nil
}

// parseValues reads test=value arguments
func parseValues(args []string) (map[string]float64, error) {
	if len(args) == 0 {
		return nil, errors.WithHint(errors.New("no values given"), "pass values as test=value, e.g. hemoglobin=132")
	}

	v := validation.NewDataValidator()
	values := make(map[string]float64, len(args))
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, errors.WithHint(errors.Newf("%q is not test=value", arg), "e.g. hemoglobin=132")
		}
		if err := v.ValidateInput(name); err != nil {
			return nil, errors.Wrapf(err, "test name %q", name)
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, errors.Newf("value of %s is not a number: %q", name, raw)
		}
		if err := v.ValidateValue(name, value); err != nil {
			return nil, err
		}
		values[name] = value
	}
	return values, nil
}

func emit(w io.Writer, table string, err error) error {
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, table)
	return err
}
