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
	"os"
	"time"

	"github.com/clearlinux/swupd-client/internal/config"
	"github.com/clearlinux/swupd-client/internal/transport"
	"github.com/clearlinux/swupd-client/swupd"
)

// minSaneYear guards against a system clock reset to the epoch, which
// would make every certificate this client checks look not-yet-valid.
const minSaneYear = 2015

// engine bundles the pieces every bundle-* command builds once per
// invocation: a transport, a manifest store, a content cache, and an
// installer, all rooted at the same resolved config.
type engine struct {
	cfg       config.Config
	transport *transport.Transport
	store     *swupd.Store
	cache     *swupd.Cache
	installer *swupd.Installer
}

// newEngine wires up an engine for cfg, loading the overlay descriptor at
// mixManifestPath (the --mix-manifest flag, if one was given) so
// load_mom/load_bundle_manifest can prefer local overlays per spec.md §4.1
// "Mix mode".
func newEngine(cfg config.Config, mixManifestPath string) (*engine, error) {
	mix, err := config.LoadMixManifest(mixManifestPath)
	if err != nil {
		return nil, err
	}

	t := transport.New()
	store := swupd.NewStore(cfg, t, mix)
	cache := swupd.NewCache(cfg, t)
	installer := swupd.NewInstaller(cfg, cache)

	return &engine{cfg: cfg, transport: t, store: store, cache: cache, installer: installer}, nil
}

// loadMoMForCurrentVersion probes the installed version via os-release and
// loads that version's MoM, the starting point every command needs before
// it can resolve bundle names against mom.BundleEntry.
func (e *engine) loadMoMForCurrentVersion(ctx context.Context) (uint32, *swupd.MoM, error) {
	if time.Now().Year() < minSaneYear {
		return 0, nil, withCode(exitTimeUnknown, fmt.Errorf("system clock reads before %d, refusing to trust certificate validity", minSaneYear))
	}

	version, err := swupd.CurrentVersion(e.cfg.PathPrefix)
	if err != nil {
		return 0, nil, withCode(exitCurrentVersionUnknown, err)
	}

	if !e.cfg.NoSigCheck {
		if _, err := os.Stat(e.cfg.CertPath); err != nil {
			return 0, nil, withCode(exitBadCert, fmt.Errorf("certificate %s unusable: %w", e.cfg.CertPath, err))
		}
	}

	mom, err := e.store.LoadMoM(ctx, version, e.cfg.AllowMix, "")
	if err != nil {
		return 0, nil, withCode(exitCouldntLoadMoM, err)
	}
	return version, mom, nil
}
