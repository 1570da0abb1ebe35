package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"goposthoc/adapters/excel"
	"goposthoc/adapters/report"
	"goposthoc/adapters/stats/matrix"
	"goposthoc/app"
	"goposthoc/domain/posthoc"
	"goposthoc/internal/config"
	"goposthoc/internal/logging"
	"goposthoc/ports"
)

func main() {
	envErr := godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "posthoc",
		Short: "Pairwise post-hoc comparisons on tabular data",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			reportDotenv(cliLogger(), envErr)
		},
	}

	rootCmd.AddCommand(
		newProceduresCmd(),
		newRunCmd(),
		newOutliersCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// cliLogger honours LOG_LEVEL before the full configuration is loaded
func cliLogger() *logging.Logger {
	return config.LoggingConfig{Level: os.Getenv("LOG_LEVEL")}.Logger("CLI")
}

// reportDotenv logs a failed .env load at debug level
func reportDotenv(l *logging.Logger, err error) {
	if err != nil {
		l.Debug("no .env loaded, using the process environment: %v", err)
	}
}

func newService() (*app.PosthocService, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return app.NewPosthocService(cfg.Posthoc, cfg.Outliers).
		WithLogger(cfg.Logging.Logger("PosthocService")), nil
}

func newProceduresCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "procedures",
		Short: "List available procedures and adjustment methods",
		Long: `List every procedure with its input shape and default distribution.

nemenyi defaults to the tukey distribution (POSTHOC_NEMENYI_DIST, tukey|chi)
and quade to t (POSTHOC_QUADE_DIST, t|normal).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tINPUT\tDEFAULT DIST")
			for _, d := range svc.Procedures() {
				dist := d.DefaultDist
				if dist == "" {
					dist = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", d.Name, d.Input, dist)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout())
			fmt.Fprintln(cmd.OutOrStdout(), "P-VALUE ADJUSTMENTS")
			for _, m := range svc.Adjustments() {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", m)
			}
			return nil
		},
	}
}

type runFlags struct {
	file      string
	sheet     string
	valueCol  string
	groupCol  string
	blockCol  string
	wide      bool
	pAdjust   string
	alpha     float64
	dist      string
	format    string
	precision int
}

func newRunCmd() *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run [procedure]",
		Short: "Run a post-hoc procedure on a CSV or XLSX file",
		Long: `Run a pairwise post-hoc procedure.

Independent-group procedures read a long table with a value and a group
column. Block procedures read either a long table with an extra block column
or, with --wide, a table whose columns are treatments and rows are blocks.

Example: posthoc run conover --file data.csv --value-col score --group-col arm --p-adjust holm`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcedure(cmd, posthoc.Procedure(args[0]), f)
		},
	}

	cmd.Flags().StringVar(&f.file, "file", "", "CSV or XLSX input file")
	cmd.Flags().StringVar(&f.sheet, "sheet", "", "XLSX sheet name")
	cmd.Flags().StringVar(&f.valueCol, "value-col", "value", "Column holding observations")
	cmd.Flags().StringVar(&f.groupCol, "group-col", "group", "Column holding group or treatment labels")
	cmd.Flags().StringVar(&f.blockCol, "block-col", "block", "Column holding block labels (block procedures)")
	cmd.Flags().BoolVar(&f.wide, "wide", false, "Read block designs in wide layout")
	cmd.Flags().StringVar(&f.pAdjust, "p-adjust", "", "P-value adjustment method (default from POSTHOC_P_ADJUST)")
	cmd.Flags().Float64Var(&f.alpha, "alpha", 0, "Significance level (default from POSTHOC_ALPHA)")
	cmd.Flags().StringVar(&f.dist, "dist", "", "Reference distribution: nemenyi tukey|chi (default tukey), quade t|normal (default t)")
	cmd.Flags().StringVar(&f.format, "format", "table", "Output format: table|json|markdown|html")
	cmd.Flags().IntVar(&f.precision, "precision", 4, "Significant digits in table and report output")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runProcedure(cmd *cobra.Command, name posthoc.Procedure, f runFlags) error {
	svc, err := newService()
	if err != nil {
		return err
	}

	var overrides app.OptionOverrides
	if cmd.Flags().Changed("p-adjust") {
		overrides.PAdjust = &f.pAdjust
	}
	if cmd.Flags().Changed("alpha") {
		overrides.Alpha = &f.alpha
	}
	if cmd.Flags().Changed("dist") {
		overrides.Dist = &f.dist
	}

	var reader ports.DatasetReader = excel.NewDataReader(f.file).WithSheet(f.sheet)
	ctx := cmd.Context()

	var res *posthoc.Result
	if svc.IsBlockProcedure(name) {
		var d posthoc.BlockDesign
		if f.wide {
			d, err = reader.ReadWideBlocks()
		} else {
			d, err = reader.ReadBlocks(f.valueCol, f.groupCol, f.blockCol)
		}
		if err != nil {
			return err
		}
		res, err = svc.RunBlock(ctx, name, d, overrides)
	} else {
		var g posthoc.Groups
		g, err = reader.ReadGroups(f.valueCol, f.groupCol)
		if err != nil {
			return err
		}
		res, err = svc.RunIndependent(ctx, name, g, overrides)
	}
	if err != nil {
		return err
	}

	return writeResult(cmd.OutOrStdout(), svc, res, f)
}

func writeResult(out io.Writer, svc *app.PosthocService, res *posthoc.Result, f runFlags) error {
	var renderer ports.ReportRenderer = &report.Renderer{Precision: f.precision}
	title := fmt.Sprintf("%s (%s)", res.Procedure, res.Options.PAdjust)

	var signs [][]string
	if res.Procedure != posthoc.ProcTukeyHSD {
		view, err := svc.Sign(res.Matrix, &res.Options.Alpha, matrix.DefaultTableOptions())
		if err != nil {
			return err
		}
		signs = view.Table
	}

	switch f.format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "markdown":
		_, err := io.WriteString(out, renderer.Markdown(title, res.Matrix, signs))
		return err
	case "html":
		_, err := out.Write(renderer.HTML(title, res.Matrix, signs))
		return err
	case "table":
		return writeTable(out, res.Matrix, f.precision)
	}
	return fmt.Errorf("unknown format %q", f.format)
}

func writeTable(out io.Writer, m posthoc.Matrix, precision int) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprint(w, "\t")
	for _, l := range m.Labels {
		fmt.Fprintf(w, "%s\t", l)
	}
	fmt.Fprintln(w)
	for i, row := range m.Values {
		fmt.Fprintf(w, "%s\t", m.Labels[i])
		for _, v := range row {
			fmt.Fprintf(w, "%s\t", strconv.FormatFloat(v, 'g', precision, 64))
		}
		fmt.Fprintln(w)
	}
	return w.Flush()
}

func newOutliersCmd() *cobra.Command {
	var (
		file     string
		sheet    string
		valueCol string
		alpha    float64
		k        int
		coef     float64
	)

	cmd := &cobra.Command{
		Use:   "outliers [iqr|grubbs|tietjen|gesd]",
		Short: "Flag outliers in a numeric column",
		Long: `Flag outliers in a numeric column.

tietjen tests for exactly --k outliers; gesd tests for up to --k outliers.

Example: posthoc outliers gesd --file data.csv --value-col score --k 10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}
			values, err := excel.NewDataReader(file).WithSheet(sheet).ReadColumn(valueCol)
			if err != nil {
				return err
			}
			req := app.OutlierRequest{Method: args[0], Values: values, K: k, Coef: coef}
			if cmd.Flags().Changed("alpha") {
				req.Alpha = &alpha
			}
			res, err := svc.DetectOutliers(cmd.Context(), req)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "CSV or XLSX input file")
	cmd.Flags().StringVar(&sheet, "sheet", "", "XLSX sheet name")
	cmd.Flags().StringVar(&valueCol, "value-col", "value", "Column holding observations")
	cmd.Flags().Float64Var(&alpha, "alpha", 0, "Significance level (default from POSTHOC_ALPHA)")
	cmd.Flags().IntVar(&k, "k", 1, "Number (tietjen) or maximum number (gesd) of outliers")
	cmd.Flags().Float64Var(&coef, "coef", 1.5, "IQR fence coefficient")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}
