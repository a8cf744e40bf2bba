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

package swupd

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/clearlinux/swupd-client/internal/config"
	"github.com/clearlinux/swupd-client/internal/transport"
)

// osReleaseVersionKey is the os-release field holding the currently
// installed content version (spec.md's "current version probe").
const osReleaseVersionKey = "VERSION_ID"

// CurrentVersion reads the installed version from
// <pathPrefix>/usr/lib/os-release, the probe spec.md names for determining
// what's already on disk before computing an install or clean's target set.
func CurrentVersion(pathPrefix string) (uint32, error) {
	path := filepath.Join(pathPrefix, "usr/lib/os-release")
	f, err := os.Open(path)
	if err != nil {
		return 0, newError(KindState, "", err, "reading %s", path)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		key, value, ok := strings.Cut(line, "=")
		if !ok || key != osReleaseVersionKey {
			continue
		}
		value = strings.Trim(value, `"`)
		version, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return 0, newError(KindState, "", err, "parsing %s from %s", osReleaseVersionKey, path)
		}
		return uint32(version), nil
	}
	if err := scanner.Err(); err != nil {
		return 0, newError(KindState, "", err, "scanning %s", path)
	}

	return 0, newError(KindState, "", nil, "%s missing from %s", osReleaseVersionKey, path)
}

// FetchTargetVersion probes cfg.VersionURL for the newest version
// published for cfg.Format, the counterpart to CurrentVersion. bundle-add
// uses it only to report that a newer version is available; bundles are
// still added at the current version.
func FetchTargetVersion(ctx context.Context, t *transport.Transport, cfg config.Config) (uint32, error) {
	url := cfg.VersionURL + "/version/format" + cfg.Format + "/latest"
	body, err := t.Get(ctx, url)
	if err != nil {
		return 0, newError(KindTransport, "", err, "fetching target version from %s", url)
	}
	defer func() {
		_ = body.Close()
	}()

	data, err := io.ReadAll(body)
	if err != nil {
		return 0, newError(KindTransport, "", err, "reading target version from %s", url)
	}

	version, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 32)
	if err != nil {
		return 0, newError(KindState, "", err, "parsing target version from %s", url)
	}
	return uint32(version), nil
}
