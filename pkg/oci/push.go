// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
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

package oci

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	ociv1 "github.com/opencontainers/image-spec/specs-go/v1"
	oras "oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content/file"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/credentials"

	"github.com/NVIDIA/cmts-monitor/pkg/defaults"
	apperrors "github.com/NVIDIA/cmts-monitor/pkg/errors"
)

const (
	// ArtifactType identifies cmtsmon archive artifacts.
	ArtifactType = "application/vnd.nvidia.cmtsmon.archive"
	// ArchiveMediaType is the layer media type of one archive file.
	ArchiveMediaType = "application/vnd.nvidia.cmtsmon.archive.v1.tar+gzip"
)

// PushOptions configures an archive push.
type PushOptions struct {
	// SourceDir is the archive directory. Every *.tar.gz file becomes a layer.
	SourceDir string
	// Reference is the registry target. An empty tag uses DefaultTag.
	Reference *Reference
	// PlainHTTP uses HTTP instead of HTTPS for the registry connection.
	PlainHTTP bool
	// InsecureTLS skips TLS certificate verification.
	InsecureTLS bool
	// Annotations are added to the manifest.
	Annotations map[string]string
	// ReproducibleTimestamp fixes the manifest creation annotation.
	ReproducibleTimestamp string
}

// PushResult describes a pushed artifact.
type PushResult struct {
	Digest    string   `json:"digest" yaml:"digest"`
	Reference string   `json:"reference" yaml:"reference"`
	Layers    []string `json:"layers" yaml:"layers"`
}

// Push packs the archive directory and pushes it to the registry.
func Push(ctx context.Context, opts PushOptions) (*PushResult, error) {
	if opts.Reference == nil {
		return nil, apperrors.New(apperrors.ErrCodeInvalidRequest, "OCI reference is required")
	}
	if err := ValidateRegistryReference(opts.Reference.Registry, opts.Reference.Repository); err != nil {
		return nil, err
	}

	repo, err := remote.NewRepository(fmt.Sprintf("%s/%s", stripProtocol(opts.Reference.Registry), opts.Reference.Repository))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize remote repository: %w", err)
	}
	repo.PlainHTTP = opts.PlainHTTP
	repo.Client = createAuthClient(opts.PlainHTTP, opts.InsecureTLS)

	return PushTo(ctx, opts, repo)
}

// PushTo packs the archive directory and copies the artifact to dst.
func PushTo(ctx context.Context, opts PushOptions, dst oras.Target) (*PushResult, error) {
	ctx, cancel := context.WithTimeout(ctx, defaults.OCIPushTimeout)
	defer cancel()

	ref := opts.Reference
	if ref == nil {
		return nil, apperrors.New(apperrors.ErrCodeInvalidRequest, "OCI reference is required")
	}
	tag := ref.Tag
	if tag == "" {
		tag = DefaultTag
	}

	absDir, err := filepath.Abs(opts.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for archive dir: %w", err)
	}
	archives, err := listArchives(absDir)
	if err != nil {
		return nil, err
	}
	if len(archives) == 0 {
		return nil, apperrors.NewWithContext(apperrors.ErrCodeNotFound,
			"archive directory holds no archives", map[string]any{"dir": absDir})
	}

	fs, err := file.New(absDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create file store: %w", err)
	}
	defer func() { _ = fs.Close() }()

	layers := make([]ociv1.Descriptor, 0, len(archives))
	for _, name := range archives {
		desc, err := fs.Add(ctx, name, ArchiveMediaType, filepath.Join(absDir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to add %s to store: %w", name, err)
		}
		layers = append(layers, desc)
	}

	packOpts := oras.PackManifestOptions{
		Layers:              layers,
		ManifestAnnotations: make(map[string]string, len(opts.Annotations)+1),
	}
	for k, v := range opts.Annotations {
		packOpts.ManifestAnnotations[k] = v
	}
	if opts.ReproducibleTimestamp != "" {
		packOpts.ManifestAnnotations[ociv1.AnnotationCreated] = opts.ReproducibleTimestamp
	}

	manifest, err := oras.PackManifest(ctx, fs, oras.PackManifestVersion1_1, ArtifactType, packOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to pack manifest: %w", err)
	}
	if err := fs.Tag(ctx, manifest, tag); err != nil {
		return nil, fmt.Errorf("failed to tag manifest in local store: %w", err)
	}

	slog.Info("pushing archive artifact",
		"registry", ref.Registry,
		"repository", ref.Repository,
		"tag", tag,
		"layers", len(layers))

	desc, err := oras.Copy(ctx, fs, tag, dst, tag, oras.DefaultCopyOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to push artifact to registry: %w", err)
	}

	return &PushResult{
		Digest:    desc.Digest.String(),
		Reference: ref.WithTag(tag).ImageReference(),
		Layers:    archives,
	}, nil
}

func listArchives(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, apperrors.WrapWithContext(apperrors.ErrCodeArchiveRead,
			"failed to list archive directory", err, map[string]any{"dir": dir})
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), defaults.ArchiveExtension) {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}

// createAuthClient creates a registry client using Docker credentials and
// optional relaxed TLS verification.
func createAuthClient(plainHTTP, insecureTLS bool) *auth.Client {
	credStore, err := credentials.NewStoreFromDocker(credentials.StoreOptions{})
	if err != nil {
		slog.Debug("docker credentials unavailable", "error", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !plainHTTP && insecureTLS {
		if transport.TLSClientConfig == nil {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
		} else {
			transport.TLSClientConfig.InsecureSkipVerify = true //nolint:gosec
		}
	}

	c := &auth.Client{
		Client: &http.Client{Transport: transport},
		Cache:  auth.NewCache(),
	}
	if credStore != nil {
		c.Credential = credentials.Credential(credStore)
	}
	return c
}
