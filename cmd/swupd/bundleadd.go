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

	"github.com/clearlinux/swupd-client/internal/diskspace"
	"github.com/clearlinux/swupd-client/log"
	"github.com/clearlinux/swupd-client/swupd"
	"github.com/spf13/cobra"
)

// downloadWorkers is the fullfile download pipeline's worker-pool size.
const downloadWorkers = 4

var flagSkipDiskspaceCheck bool

var bundleAddCmd = &cobra.Command{
	Use:   "bundle-add BUNDLE...",
	Short: "Install one or more bundles",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runBundleAdd,
}

func init() {
	bundleAddCmd.Flags().BoolVar(&flagSkipDiskspaceCheck, "skip-diskspace-check", false,
		"skip the pre-install free-space check")
}

func runBundleAdd(cmd *cobra.Command, args []string) error {
	setLogLevelFromFlags()
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("skip-diskspace-check") {
		cfg.SkipDiskspaceCheck = flagSkipDiskspaceCheck
	}

	ctx := cmd.Context()
	e, err := newEngine(cfg, flagMixManifest)
	if err != nil {
		return err
	}

	currentVersion, mom, err := e.loadMoMForCurrentVersion(ctx)
	if err != nil {
		return err
	}

	if latest, err := swupd.FetchTargetVersion(ctx, e.transport, cfg); err != nil {
		log.Warning(log.Client, "could not check for a newer OS version: %s", err)
	} else if latest > currentVersion {
		log.Info(log.Client, "a newer OS version (%d) is available; bundles are being added at version %d", latest, currentVersion)
	}

	subs, err := swupd.ReadSubscriptions(cfg)
	if err != nil {
		return err
	}
	initiallyInstalled := make(map[string]bool, len(subs))
	for _, s := range subs {
		initiallyInstalled[s.Name] = true
	}

	var firstErr error
	var invalidCount, failedCount, requestedNew int
	for _, name := range args {
		flags := swupd.AddSubscriptions(ctx, []string{name}, &subs, e.store, mom, cfg, false, 0)
		switch {
		case flags&swupd.FlagBadName != 0:
			invalidCount++
			if firstErr == nil {
				firstErr = &swupd.InvalidBundleError{Name: name}
			}
		case flags&swupd.FlagErr != 0:
			failedCount++
			if firstErr == nil {
				firstErr = withCode(exitCouldntLoadManifest, fmt.Errorf("failed to load manifest for bundle %q", name))
			}
		case flags&swupd.FlagNew != 0:
			requestedNew++
		default:
			log.Info(log.Client, "Bundle %q is already installed", name)
		}
	}

	if invalidCount+failedCount > 0 {
		log.Error(log.Client, "Failed to install %d of %d bundles", invalidCount+failedCount, len(args))
	}

	var newNames []string
	for _, s := range subs {
		if !initiallyInstalled[s.Name] {
			newNames = append(newNames, s.Name)
		}
	}
	if len(newNames) == 0 {
		return firstErr
	}

	log.Info(log.Client, "Loading required manifests...")
	manifests, err := swupd.RecurseManifest(ctx, e.store, mom, subs, "", false)
	if err != nil {
		return withCode(exitRecurseManifest, err)
	}

	allFiles := swupd.ConsolidateFiles(swupd.FilesFromBundles(manifests))
	toInstall := swupd.FilterOutDeletedFiles(allFiles)

	if !cfg.SkipDiskspaceCheck {
		var total uint64
		for _, m := range manifests {
			total += m.Header.ContentSize
		}
		if err := diskspace.Check(cfg.PathPrefix, total); err != nil {
			return withCode(exitDiskSpaceError, err)
		}
	}

	if err := e.cache.Revalidate(toInstall); err != nil {
		return err
	}

	if swupd.ShouldFetchPack(toInstall) {
		log.Info(log.Client, "Downloading packs...")
	} else {
		log.Info(log.Client, "No packs need to be downloaded")
	}

	if err := e.cache.DownloadFullfiles(ctx, toInstall, downloadWorkers); err != nil {
		return err
	}

	log.Info(log.Client, "Installing bundle(s) files...")
	if err := e.installer.Install(toInstall, mom); err != nil {
		return err
	}

	for _, name := range newNames {
		if err := swupd.TrackInstalled(cfg, name); err != nil {
			return err
		}
	}

	log.Info(log.Client, "Successfully installed %d bundle%s", requestedNew, plural(requestedNew))
	return firstErr
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
