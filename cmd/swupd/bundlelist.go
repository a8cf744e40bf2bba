// Copyright 2017 Intel Corporation
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"os"
	"sort"

	"github.com/clearlinux/swupd-client/swupd"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var flagListAll bool

var bundleListCmd = &cobra.Command{
	Use:   "bundle-list",
	Short: "List bundles",
	Args:  cobra.NoArgs,
	RunE:  runBundleList,
}

func init() {
	bundleListCmd.Flags().BoolVar(&flagListAll, "all", false, "list every bundle available at the current version, not just installed ones")
}

func runBundleList(cmd *cobra.Command, args []string) error {
	setLogLevelFromFlags()
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	e, err := newEngine(cfg, flagMixManifest)
	if err != nil {
		return err
	}

	_, mom, err := e.loadMoMForCurrentVersion(ctx)
	if err != nil {
		return err
	}

	var names []string
	if flagListAll {
		for _, f := range mom.Files {
			names = append(names, f.Name)
		}
	} else {
		subs, err := swupd.ReadSubscriptions(cfg)
		if err != nil {
			return err
		}
		for _, s := range subs {
			names = append(names, s.Name)
		}
	}
	sort.Strings(names)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Bundle", "Experimental"})
	for _, name := range names {
		exp := ""
		if entry := mom.BundleEntry(name); entry != nil && entry.Experimental {
			exp = "yes"
		}
		table.Append([]string{name, exp})
	}
	table.Render()

	return nil
}
