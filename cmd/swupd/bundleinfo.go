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
	"context"
	"fmt"
	"sort"

	"github.com/clearlinux/swupd-client/internal/config"
	"github.com/clearlinux/swupd-client/log"
	"github.com/clearlinux/swupd-client/swupd"
	"github.com/spf13/cobra"
)

var (
	flagInfoDependencies bool
	flagInfoRequires     bool
)

var bundleInfoCmd = &cobra.Command{
	Use:   "bundle-info BUNDLE",
	Short: "Show a bundle's include closure or dependants",
	Args:  cobra.ExactArgs(1),
	RunE:  runBundleInfo,
}

func init() {
	bundleInfoCmd.Flags().BoolVar(&flagInfoDependencies, "dependencies", false, "show the bundles this one includes")
	bundleInfoCmd.Flags().BoolVar(&flagInfoRequires, "requires", false, "show installed bundles that require this one")
}

func runBundleInfo(cmd *cobra.Command, args []string) error {
	setLogLevelFromFlags()
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	name := args[0]

	ctx := cmd.Context()
	e, err := newEngine(cfg, flagMixManifest)
	if err != nil {
		return err
	}

	_, mom, err := e.loadMoMForCurrentVersion(ctx)
	if err != nil {
		return err
	}

	if mom.BundleEntry(name) == nil {
		return &swupd.InvalidBundleError{Name: name}
	}

	if flagInfoRequires {
		return showRequires(ctx, e, mom, name, cfg)
	}
	return showDependencies(ctx, e, mom, name)
}

// showDependencies prints name's include closure (spec.md §4.3), one
// bundle name per line, excluding name itself. This is both the default
// view and what --dependencies asks for explicitly.
func showDependencies(ctx context.Context, e *engine, mom *swupd.MoM, name string) error {
	manifests, err := swupd.RecurseManifest(ctx, e.store, mom, nil, name, false)
	if err != nil {
		return withCode(exitRecurseManifest, err)
	}

	var names []string
	for _, m := range manifests {
		if m.Name != name {
			names = append(names, m.Name)
		}
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}

// showRequires prints the required_by tree (spec.md §4.2) for name: every
// installed bundle that includes it, directly or transitively.
func showRequires(ctx context.Context, e *engine, mom *swupd.MoM, name string, cfg config.Config) error {
	subs, err := swupd.ReadSubscriptions(cfg)
	if err != nil {
		return err
	}
	if _, err := swupd.RecurseManifest(ctx, e.store, mom, subs, "", false); err != nil {
		return withCode(exitRecurseManifest, err)
	}

	dependants := swupd.RequiredBy(name, mom)
	if len(dependants) == 0 {
		log.Info(log.Client, "no installed bundles require %q", name)
		return nil
	}
	for _, line := range dependants {
		fmt.Println(line)
	}
	return nil
}
