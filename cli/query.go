package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/giygas/labref-api/catalog"
	"github.com/giygas/labref-api/errors"
	"github.com/giygas/labref-api/report"
	"github.com/giygas/labref-api/source"
	"github.com/giygas/labref-api/study"
)

func newCheckCmd(opts *options) *cobra.Command {
	var (
		pf          patientFlags
		studyName   string
		biomaterial string
	)

	cmd := &cobra.Command{
		Use:   "check [biomaterial] test=value...",
		Short: "Classify measured values against reference ranges",
		Long: `Classify values against one biomaterial catalog, or with --study evaluate
them as a study result. Study values must all belong to the study; the
biomaterial defaults to the study's preferred one.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := pf.patient()
			if err != nil {
				return err
			}
			provider, err := source.Open(opts.dir)
			if err != nil {
				return err
			}

			if studyName != "" {
				values, err := parseValues(args)
				if err != nil {
					return err
				}
				reg, err := study.NewRegistry(ctx, provider)
				if err != nil {
					return err
				}
				res, err := reg.CreateResult(ctx, studyName, biomaterial, p)
				if err != nil {
					return err
				}
				if err := res.AddResults(values); err != nil {
					return err
				}
				out, err := report.Result(res)
				return emit(cmd.OutOrStdout(), out, err)
			}

			if len(args) == 0 {
				return errors.WithHint(errors.New("missing biomaterial"), "labref check <biomaterial> test=value..., or --study <name>")
			}
			values, err := parseValues(args[1:])
			if err != nil {
				return err
			}
			c, err := catalog.Load(ctx, args[0], provider)
			if err != nil {
				return err
			}
			out, err := report.Outcomes(c.Evaluate(values, p))
			return emit(cmd.OutOrStdout(), out, err)
		},
	}

	pf.register(cmd)
	cmd.Flags().StringVar(&studyName, "study", "", "Evaluate the values as a result of this study")
	cmd.Flags().StringVar(&biomaterial, "biomaterial", "", "Biomaterial of the study result (default: the study's preferred)")
	return cmd
}

func newReferenceCmd(opts *options) *cobra.Command {
	var (
		pf    patientFlags
		names bool
	)

	cmd := &cobra.Command{
		Use:   "reference <biomaterial> [test]",
		Short: "Show reference ranges",
		Long: `Without a test, print every range of the catalog (or only the test
names with --names). With a test, resolve its range for --sex and --age.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := source.Open(opts.dir)
			if err != nil {
				return err
			}
			c, err := catalog.Load(cmd.Context(), args[0], provider)
			if err != nil {
				return err
			}

			if len(args) == 1 {
				if names {
					out, err := report.TestNames(c)
					return emit(cmd.OutOrStdout(), out, err)
				}
				out, err := report.ReferenceTable(c)
				return emit(cmd.OutOrStdout(), out, err)
			}

			p, err := pf.patient()
			if err != nil {
				return err
			}
			t, err := c.GetTable(args[1])
			if err != nil {
				return err
			}
			r, err := t.Resolve(p)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s (%s), %s: %s\n", t.NameRU(), t.Name(), p, r)
			return err
		},
	}

	pf.register(cmd)
	cmd.Flags().BoolVar(&names, "names", false, "List test names only")
	return cmd
}

func newStudiesCmd(opts *options) *cobra.Command {
	var test string

	cmd := &cobra.Command{
		Use:   "studies",
		Short: "List lab studies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := source.Open(opts.dir)
			if err != nil {
				return err
			}
			reg, err := study.NewRegistry(cmd.Context(), provider)
			if err != nil {
				return err
			}

			names := reg.ListStudies()
			if test != "" {
				names = reg.FindStudiesWithTest(test)
			}
			infos := make([]study.Info, 0, len(names))
			for _, name := range names {
				info, err := reg.StudyInfo(name)
				if err != nil {
					return err
				}
				infos = append(infos, info)
			}
			out, err := report.Studies(infos)
			return emit(cmd.OutOrStdout(), out, err)
		},
	}

	cmd.Flags().StringVar(&test, "test", "", "Only studies declaring this test")
	return cmd
}

func newBiomaterialsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "biomaterials",
		Short: "List documents that declare a biomaterial type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := source.Open(opts.dir)
			if err != nil {
				return err
			}
			infos, err := source.ListBiomaterials(cmd.Context(), provider)
			if err != nil {
				return err
			}
			out, err := report.Biomaterials(infos)
			return emit(cmd.OutOrStdout(), out, err)
		},
	}
}

func newTypesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List every reference document except lab_studies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := source.Open(opts.dir)
			if err != nil {
				return err
			}
			infos, err := source.Describe(cmd.Context(), provider)
			if err != nil {
				return err
			}
			types := make([]source.Info, 0, len(infos))
			for _, info := range infos {
				if info.Key != source.StudiesKey {
					types = append(types, info)
				}
			}
			out, err := report.TestTypes(types)
			return emit(cmd.OutOrStdout(), out, err)
		},
	}
}
