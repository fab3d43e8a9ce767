package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/water-quality-etl/internal/schema"
)

func newSchemaCmd(stdout io.Writer) *cobra.Command {
	var contractPath string

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Describe the schema contract",
		Long: `Print every normalized column of the schema contract with its type, source
column, description and constraints, followed by the recognized raw columns.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			contract, err := schema.FromPath(contractPath)
			if err != nil {
				return err
			}
			return describeContract(stdout, contract)
		},
	}
	cmd.Flags().StringVar(&contractPath, "contract", sharedcfg.EnvOrDefault("SCHEMA_CONTRACT_PATH", ""), "YAML schema contract (default built-in ECCC contract)")
	return cmd
}

func describeContract(w io.Writer, c *schema.Contract) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "COLUMN\tTYPE\tREQUIRED\tSOURCE\tCONSTRAINTS\tDESCRIPTION")
	for _, col := range c.NormalizedColumns() {
		typ, _ := c.TypeOf(col)
		raw, ok := c.RawColumnFor(col)
		if !ok {
			raw = "-"
		}
		cs, _ := c.ConstraintsFor(col)
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\t%s\n",
			col, typ, c.IsRequired(col), raw, describeConstraints(cs), c.Describe(col))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nRequired source columns: %s\n", strings.Join(c.RawRequiredColumns(), ", "))
	fmt.Fprintf(w, "Optional source columns: %s\n", strings.Join(c.RawOptionalColumns(), ", "))
	fmt.Fprintf(w, "Duplicate key: %s\n", strings.Join(c.DuplicateKey(), " + "))
	_, err := fmt.Fprintf(w, "Datetime layouts: %s\n", strings.Join(c.TimeLayouts(), " | "))
	return err
}

func describeConstraints(cs schema.Constraints) string {
	var parts []string
	if cs.NotNull {
		parts = append(parts, "not null")
	}
	if cs.Min != nil {
		parts = append(parts, fmt.Sprintf(">= %g", *cs.Min))
	}
	if cs.Max != nil {
		parts = append(parts, fmt.Sprintf("<= %g", *cs.Max))
	}
	if !cs.NotBefore.IsZero() {
		parts = append(parts, "from "+cs.NotBefore.Format(time.DateOnly))
	}
	if !cs.Before.IsZero() {
		parts = append(parts, "before "+cs.Before.Format(time.DateOnly))
	}
	if len(cs.Allowed) > 0 {
		parts = append(parts, "one of "+strings.Join(cs.Allowed, " "))
	}
	if cs.Pattern != nil {
		parts = append(parts, "matches "+cs.Pattern.String())
	}
	if cs.MaxLength > 0 {
		parts = append(parts, fmt.Sprintf("max %d chars", cs.MaxLength))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, "; ")
}
