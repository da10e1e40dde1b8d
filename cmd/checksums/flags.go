package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/checksums/pkg/checksums/output"
	"github.com/jamesainslie/checksums/pkg/checksums/types"
)

// addKindFlags registers --pass, --missing and --bad on cmd.
func addKindFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("pass", false, "show PASS records")
	cmd.Flags().Bool("missing", false, "show MISSING records")
	cmd.Flags().Bool("bad", false, "show BAD records")
}

// kindFilter builds the record filter from the kind flags. No flag set
// selects every kind.
func kindFilter(cmd *cobra.Command) types.KindSet {
	var set types.KindSet
	for _, f := range []struct {
		name string
		kind types.Kind
	}{
		{"pass", types.KindPass},
		{"missing", types.KindMissing},
		{"bad", types.KindBad},
	} {
		if on, _ := cmd.Flags().GetBool(f.name); on {
			set = set.With(f.kind)
		}
	}
	if set == 0 {
		return types.AllKinds
	}
	return set
}

// resolveFormatter returns the formatter selected with --output.
func resolveFormatter() (output.Formatter, error) {
	name := viper.GetString("output")
	if name == "" {
		name = "pretty"
	}

	if name == "template" {
		tmpl := viper.GetString("template")
		if tmpl == "" {
			return nil, fmt.Errorf("--template is required when using -o template")
		}
		return output.NewTemplateFormatter(tmpl), nil
	}

	f, err := output.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown output format %q: available formats are %v", name, output.Available())
	}
	return f, nil
}

// interactive reports whether the TUI should run. Any explicit output
// format other than pretty forces text output.
func interactive() bool {
	if viper.GetBool("no_interactive") {
		return false
	}
	name := viper.GetString("output")
	return name == "" || name == "pretty"
}

// outputFormats lists the --output choices for help text.
func outputFormats() string {
	names := output.Available()
	sort.Strings(names)
	return strings.Join(names, ", ")
}
