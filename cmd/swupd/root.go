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

// Command swupd is the client-side bundle-lifecycle front end: bundle-add,
// bundle-remove, bundle-list, bundle-info, and clean, each a thin Cobra
// command wired over the swupd package's core engine.
package main

import (
	"fmt"
	"os"

	"github.com/clearlinux/swupd-client/internal/config"
	"github.com/clearlinux/swupd-client/log"
	"github.com/spf13/cobra"
)

var (
	flagConfigPath  string
	flagPathPrefix  string
	flagStateDir    string
	flagContentURL  string
	flagVersionURL  string
	flagFormat      string
	flagCertPath    string
	flagNoSigCheck  bool
	flagMixManifest string
	flagAllowMix    bool
	flagVerbose     bool
	flagQuiet       bool
)

var rootCmd = &cobra.Command{
	Use:           "swupd",
	Short:         "Manage bundles on a swupd-updated system",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfigPath, "config", "", "path to the swupd config file")
	pf.StringVar(&flagPathPrefix, "path-prefix", "", "installation root")
	pf.StringVar(&flagStateDir, "statedir", "", "writable state directory")
	pf.StringVar(&flagContentURL, "contenturl", "", "content URL override")
	pf.StringVar(&flagVersionURL, "versionurl", "", "version URL override")
	pf.StringVar(&flagFormat, "format", "", "manifest format override")
	pf.StringVar(&flagCertPath, "cert-path", "", "CA certificate used to verify the MoM signature")
	pf.BoolVar(&flagNoSigCheck, "nosigcheck", false, "disable MoM signature verification")
	pf.StringVar(&flagMixManifest, "mix-manifest", "", "path to a local mix-overlay descriptor")
	pf.BoolVar(&flagAllowMix, "allow-mix", false, "prefer local mix overlays over network manifests")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "verbose logging")
	pf.BoolVarP(&flagQuiet, "quiet", "q", false, "errors only")

	rootCmd.AddCommand(bundleAddCmd)
	rootCmd.AddCommand(bundleRemoveCmd)
	rootCmd.AddCommand(bundleListCmd)
	rootCmd.AddCommand(bundleInfoCmd)
	rootCmd.AddCommand(cleanCmd)
}

// buildConfig loads the on-disk config (or compiled-in defaults) and
// overlays any flags the caller actually set, later sources winning per
// spec.md §9's "single configuration record" design note.
func buildConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(flagConfigPath)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("path-prefix") {
		cfg.PathPrefix = flagPathPrefix
	}
	if flags.Changed("statedir") {
		cfg.StateDir = flagStateDir
	}
	if flags.Changed("contenturl") {
		cfg.ContentURL = flagContentURL
	}
	if flags.Changed("versionurl") {
		cfg.VersionURL = flagVersionURL
	} else if flags.Changed("contenturl") {
		cfg.VersionURL = flagContentURL
	}
	if flags.Changed("format") {
		cfg.Format = flagFormat
	}
	if flags.Changed("cert-path") {
		cfg.CertPath = flagCertPath
	}
	if flags.Changed("nosigcheck") {
		cfg.NoSigCheck = flagNoSigCheck
	}
	if flags.Changed("allow-mix") {
		cfg.AllowMix = flagAllowMix
	}

	return cfg, nil
}

// setLogLevelFromFlags applies -v/-q the way mixer derives its own log
// level from persistent cobra flags.
func setLogLevelFromFlags() {
	switch {
	case flagVerbose:
		log.SetLogLevel(log.LevelDebug)
	case flagQuiet:
		log.SetLogLevel(log.LevelError)
	default:
		log.SetLogLevel(log.LevelInfo)
	}
}

// fail prints err and returns the exit code the caller should use, the
// same failf/fail shape the teacher's CLI commands use to turn a returned
// error into terminal output plus a process exit code.
func fail(err error) int {
	fmt.Fprintln(os.Stderr, "Error:", err)
	return codeForError(err)
}

func main() {
	os.Exit(run())
}

func run() int {
	if err := rootCmd.Execute(); err != nil {
		return fail(err)
	}
	return exitOK
}
