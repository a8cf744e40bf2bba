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
	"github.com/clearlinux/swupd-client/log"
	"github.com/clearlinux/swupd-client/swupd"
	"github.com/spf13/cobra"
)

var (
	flagCleanAll    bool
	flagCleanDryRun bool
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove cached manifests and staged content no longer needed",
	Args:  cobra.NoArgs,
	RunE:  runClean,
}

func init() {
	cleanCmd.Flags().BoolVar(&flagCleanAll, "all", false, "remove every cacheable artifact, not just unreferenced versions")
	cleanCmd.Flags().BoolVar(&flagCleanDryRun, "dry-run", false, "report what would be removed without removing anything")
}

func runClean(cmd *cobra.Command, args []string) error {
	setLogLevelFromFlags()
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	version, err := swupd.CurrentVersion(cfg.PathPrefix)
	if err != nil {
		return withCode(exitCurrentVersionUnknown, err)
	}

	result, err := swupd.Clean(cfg, version, flagCleanAll, flagCleanDryRun)
	if err != nil {
		return withCode(exitCouldntListDir, err)
	}

	if flagCleanDryRun {
		log.Info(log.Clean, "%d files would be removed", result.FilesRemoved)
	} else {
		log.Info(log.Clean, "%d files removed", result.FilesRemoved)
	}
	return nil
}
