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
	"fmt"

	"github.com/clearlinux/swupd-client/log"
	"github.com/clearlinux/swupd-client/swupd"
	"github.com/spf13/cobra"
)

var bundleRemoveCmd = &cobra.Command{
	Use:   "bundle-remove BUNDLE...",
	Short: "Uninstall one or more bundles",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runBundleRemove,
}

func runBundleRemove(cmd *cobra.Command, args []string) error {
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

	var firstErr error
	var failed, removed int
	for _, name := range args {
		if name == "os-core" {
			failed++
			log.Error(log.Client, "Bundle %q not allowed to be removed", name)
			if firstErr == nil {
				firstErr = withCode(exitRequiredBundleError, fmt.Errorf("bundle %q not allowed to be removed", name))
			}
			continue
		}

		result, err := swupd.Remove(ctx, cfg, e.store, mom, name)
		if err != nil {
			failed++
			log.Error(log.Remove, "%s", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		removed++
		log.Info(log.Remove, "Removed bundle %q (%d files)", name, result.FilesRemoved)
	}

	if failed > 0 {
		log.Error(log.Client, "Failed to remove %d of %d bundles", failed, len(args))
	}
	if removed > 0 {
		log.Info(log.Client, "Successfully removed %d bundle%s", removed, plural(removed))
	}

	return firstErr
}
