package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"iocheck/internal/casefile"
	"iocheck/internal/discovery"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List discovered test cases",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	addCaseSourceFlags(listCmd)
	listCmd.Flags().BoolP("long", "l", false, "show which sidecar files each case has")
}

func runList(cmd *cobra.Command, args []string) error {
	s, err := resolveSettings(cmd, args)
	if err != nil {
		return err
	}
	long, err := cmd.Flags().GetBool("long")
	if err != nil {
		return fmt.Errorf("failed to get long flag: %w", err)
	}
	cases, err := selectCases(cmd, s, nil)
	if err != nil {
		return err
	}
	if err := discovery.CheckUnique(cases, s.Separator); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, c := range cases {
		if !long {
			fmt.Fprintln(out, c.FullName(s.Separator))
			continue
		}
		fmt.Fprintf(out, "%s\t%s\n", c.FullName(s.Separator), sidecars(c))
	}
	return nil
}

// sidecars lists the suffixes present for c, e.g. "arg,out,exit".
func sidecars(c casefile.Case) string {
	var present []string
	for _, suffix := range casefile.Suffixes {
		if _, ok := c.Resolve(suffix); ok {
			present = append(present, string(suffix))
		}
	}
	return strings.Join(present, ",")
}
