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
	"bytes"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/clearlinux/swupd-client/internal/config"
	"github.com/clearlinux/swupd-client/log"
)

// ignoredPrefixes lists live-tree paths the installer must never touch,
// even if a manifest names them: local overlays the image owns, not the
// update stream (spec.md §4.6's "ignore predicate").
var ignoredPrefixes = []string{
	"/etc/passwd",
	"/etc/group",
	"/etc/shadow",
	"/etc/machine-id",
}

// ignored implements the ignore predicate: paths under an ignored prefix
// are skipped by both install passes.
func ignored(name string) bool {
	for _, prefix := range ignoredPrefixes {
		if name == prefix || strings.HasPrefix(name, prefix+"/") {
			return true
		}
	}
	return false
}

// skipInstall reports whether r should be left alone by both install
// passes (spec.md §4.6).
func skipInstall(r FileRef) bool {
	return r.IsDeleted() || r.DoNotUpdate || ignored(r.Name)
}

// Installer applies a consolidated to-install file list to the live tree
// under cfg.PathPrefix in the crash-safe stage→rename sequence spec.md
// §4.6 describes.
type Installer struct {
	cfg   config.Config
	cache *Cache

	// runPostUpdateScripts is called once after the rename pass and
	// filesystem sync with the subset of records the rename pass found
	// boot-relevant, the same way transport.Transport is the out-of-scope
	// collaborator Store and Cache take as a constructor argument rather
	// than calling directly. NewInstaller wires the real implementation;
	// tests substitute a fake to observe the hook firing without exec'ing
	// anything.
	runPostUpdateScripts func([]FileRef) error
}

// NewInstaller builds an Installer rooted at cfg.PathPrefix, reading
// staged blobs from cache.
func NewInstaller(cfg config.Config, cache *Cache) *Installer {
	return &Installer{cfg: cfg, cache: cache, runPostUpdateScripts: runClrBootManagerUpdate}
}

// runClrBootManagerUpdate is the real post-update script hook: clr-boot-manager
// owns everything about making a newly-installed kernel/bootloader record
// bootable, and is invoked the same way VerifySignature shells out to
// openssl rather than reimplementing the logic in Go.
func runClrBootManagerUpdate(records []FileRef) error {
	cmd := exec.Command("clr-boot-manager", "update")
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	if err := cmd.Run(); err != nil {
		return newError(KindState, "", err, "post-update scripts failed: %s", strings.TrimSpace(buf.String()))
	}
	return nil
}

func (in *Installer) livePath(name string) string {
	return filepath.Join(in.cfg.PathPrefix, name)
}

// Install runs both passes over toInstall (already consolidated) and
// syncs the filesystem at the end. mom is consulted when a record came
// from the MoM's own file list rather than a bundle manifest, for the
// rename pass' authoritative-record lookup (spec.md §4.6).
func (in *Installer) Install(toInstall []FileRef, mom *MoM) error {
	if err := in.stage(toInstall); err != nil {
		return err
	}
	scriptTargets, err := in.rename(toInstall, mom)
	if err != nil {
		return err
	}
	if err := syncFS(); err != nil {
		return err
	}
	if len(scriptTargets) == 0 || in.runPostUpdateScripts == nil {
		return nil
	}
	if err := in.runPostUpdateScripts(scriptTargets); err != nil {
		log.Warning(log.Install, "post-update scripts failed: %s", err)
	}
	return nil
}

// stage is pass 1: ensure parent directories exist, clear out
// type-mismatched live entries, materialize directories in place, and
// copy staged blobs to "<final>.update" siblings.
func (in *Installer) stage(toInstall []FileRef) error {
	for _, r := range toInstall {
		if skipInstall(r) {
			continue
		}

		dst := in.livePath(r.Name)
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return newError(KindState, r.Bundle, err, "creating parent directory for %s", r.Name)
		}

		if err := in.clearTypeMismatch(r, dst); err != nil {
			return err
		}

		if r.IsDir() {
			if err := os.MkdirAll(dst, 0755); err != nil {
				return newError(KindState, r.Bundle, err, "creating directory %s", r.Name)
			}
			continue
		}

		if err := in.stageFile(r, dst); err != nil {
			return err
		}
	}
	return nil
}

// clearTypeMismatch unlinks a live entry whose type differs from r's
// record, so the stage pass can materialize the new type cleanly.
func (in *Installer) clearTypeMismatch(r FileRef, dst string) error {
	fi, err := os.Lstat(dst)
	if err != nil {
		return nil
	}
	live := typeFromLstat(fi)
	if !typeChanged(r.File, live) {
		return nil
	}
	if err := os.RemoveAll(dst); err != nil {
		return newError(KindState, r.Bundle, err, "removing type-mismatched entry at %s", r.Name)
	}
	return nil
}

func typeFromLstat(fi os.FileInfo) ftype {
	switch {
	case fi.IsDir():
		return typeDirectory
	case fi.Mode()&os.ModeSymlink != 0:
		return typeLink
	default:
		return typeFile
	}
}

// stageFile copies (or symlinks) the staged blob for r to dst+".update".
func (in *Installer) stageFile(r FileRef, dst string) error {
	updatePath := dst + ".update"

	if r.IsLink() {
		target, err := in.stagedLinkTarget(r)
		if err != nil {
			return err
		}
		_ = os.Remove(updatePath)
		if err := os.Symlink(target, updatePath); err != nil {
			return newError(KindState, r.Bundle, err, "symlinking %s", r.Name)
		}
		return nil
	}

	src := in.cache.stagedPath(r.Hash)
	srcFI, err := os.Lstat(src)
	if err != nil {
		return newError(KindState, r.Bundle, err, "accessing staged blob for %s", r.Name)
	}

	if err := copyFileMode(updatePath, src, srcFI); err != nil {
		return newError(KindState, r.Bundle, err, "staging %s", r.Name)
	}
	return nil
}

// stagedLinkTarget reads the link target out of the staged placeholder;
// symlinks are staged as 0-byte files whose target is stored in a
// sibling ".target" file (spec.md §4.5's staged-content description).
func (in *Installer) stagedLinkTarget(r FileRef) (string, error) {
	targetPath := in.cache.stagedPath(r.Hash) + ".target"
	data, err := os.ReadFile(targetPath)
	if err != nil {
		return "", newError(KindState, r.Bundle, err, "reading symlink target for %s", r.Name)
	}
	return string(data), nil
}

// copyFileMode copies src to dst, creating dst with srcFI's permission
// bits, matching the teacher's copyFile (uid/gid and setuid/setgid/sticky
// preserved via a post-copy chown/chmod).
func copyFileMode(dst, src string, srcFI os.FileInfo) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		_ = srcFile.Close()
	}()

	dstFile, err := os.OpenFile(dst, os.O_RDWR|os.O_CREATE|os.O_TRUNC, srcFI.Mode())
	if err != nil {
		return err
	}

	if _, err = io.Copy(dstFile, srcFile); err != nil {
		_ = dstFile.Close()
		return err
	}

	if stat, ok := srcFI.Sys().(*syscall.Stat_t); ok {
		if err = dstFile.Chown(int(stat.Uid), int(stat.Gid)); err != nil {
			_ = dstFile.Close()
			return err
		}
	}
	if srcFI.Mode()&(os.ModeSticky|os.ModeSetgid|os.ModeSetuid) != 0 {
		if err = dstFile.Chmod(srcFI.Mode()); err != nil {
			_ = dstFile.Close()
			return err
		}
	}
	return dstFile.Close()
}

// rename is pass 2: atomically rename each "<final>.update" sibling onto
// its final path. Directories need no rename, they were staged in place.
// It returns the subset of records the MoM-authoritative lookup marked
// boot-relevant, for Install to hand to the post-update script hook.
func (in *Installer) rename(toInstall []FileRef, mom *MoM) ([]FileRef, error) {
	var scriptTargets []FileRef
	for _, r := range toInstall {
		if skipInstall(r) || r.IsDir() {
			continue
		}

		rec := r.File
		if mom != nil {
			if authoritative := mom.BundleEntry(r.Name); authoritative != nil {
				rec = authoritative
			}
		}

		dst := in.livePath(r.Name)
		updatePath := dst + ".update"
		if err := os.Rename(updatePath, dst); err != nil {
			return nil, newError(KindState, r.Bundle, err, "renaming %s into place", r.Name)
		}

		if rec.IsBoot() {
			scriptTargets = append(scriptTargets, FileRef{File: rec, Bundle: r.Bundle})
		}
	}
	return scriptTargets, nil
}

func syncFS() error {
	f, err := os.Open("/")
	if err != nil {
		return nil
	}
	defer func() {
		_ = f.Close()
	}()
	if err := f.Sync(); err != nil {
		log.Warning(log.Install, "sync after install failed: %s", err)
	}
	return nil
}
