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

package config

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// MixOverlay describes one bundle's local manifest overlay: when AllowMix
// is set (spec.md §4.1 "Mix mode"), load_mom prefers the manifest at
// ManifestPath over the network copy for that bundle's version.
type MixOverlay struct {
	Source       string `toml:"source"`
	ManifestPath string `toml:"manifest_path"`
	Flags        struct {
		Preferred bool `toml:"preferred"`
	} `toml:"flags"`
}

// MixManifest is the parsed shape of the mix-overlay descriptor file: a
// table of per-bundle overlays, keyed by bundle name. TOML is used here,
// rather than the INI format the rest of the config uses, because an
// overlay entry needs a nested table (source plus flags) that INI
// represents awkwardly.
type MixManifest struct {
	Bundles map[string]MixOverlay `toml:"bundles"`
}

// LoadMixManifest reads a mix-overlay descriptor from path. A missing file
// is not an error — it means no bundles have local overlays.
func LoadMixManifest(path string) (*MixManifest, error) {
	mm := &MixManifest{Bundles: map[string]MixOverlay{}}
	if !fileExists(path) {
		return mm, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening mix manifest %s", path)
	}
	defer func() {
		_ = f.Close()
	}()

	if _, err := toml.DecodeReader(f, mm); err != nil {
		return nil, errors.Wrapf(err, "parsing mix manifest %s", path)
	}
	return mm, nil
}

// Overlay returns the overlay entry for bundle, and whether one is
// recorded and marked preferred.
func (mm *MixManifest) Overlay(bundle string) (MixOverlay, bool) {
	o, ok := mm.Bundles[bundle]
	return o, ok && o.Flags.Preferred
}
