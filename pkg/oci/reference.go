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
	"fmt"
	"strings"

	"github.com/distribution/reference"

	apperrors "github.com/NVIDIA/cmts-monitor/pkg/errors"
)

// URIScheme prefixes OCI registry targets (e.g., "oci://ghcr.io/org/repo:tag").
const URIScheme = "oci://"

// DefaultTag is used when a target names no tag.
const DefaultTag = "latest"

// Reference is a parsed OCI registry target.
type Reference struct {
	// Registry is the registry host (e.g., "ghcr.io", "localhost:5000").
	Registry string
	// Repository is the repository path (e.g., "nvidia/cmts-archive").
	Repository string
	// Tag is the image tag. Empty means the caller applies a default.
	Tag string
}

// IsOCITarget reports whether target uses the oci:// scheme.
func IsOCITarget(target string) bool {
	return strings.HasPrefix(target, URIScheme)
}

// ParseReference parses an oci://registry/repository[:tag] target.
func ParseReference(target string) (*Reference, error) {
	if !IsOCITarget(target) {
		return nil, apperrors.NewWithContext(apperrors.ErrCodeInvalidRequest,
			"OCI target must start with "+URIScheme, map[string]any{"target": target})
	}

	ref, err := reference.ParseNormalizedNamed(strings.TrimPrefix(target, URIScheme))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInvalidRequest, "invalid OCI reference", err)
	}
	if _, digested := ref.(reference.Digested); digested {
		return nil, apperrors.NewWithContext(apperrors.ErrCodeInvalidRequest,
			"OCI target cannot pin a digest", map[string]any{"target": target})
	}

	r := &Reference{
		Registry:   reference.Domain(ref),
		Repository: reference.Path(ref),
	}
	if tagged, ok := ref.(reference.Tagged); ok {
		r.Tag = tagged.Tag()
	}
	return r, nil
}

// String returns the reference with the oci:// scheme.
func (r *Reference) String() string {
	return URIScheme + r.ImageReference()
}

// ImageReference returns the Docker-style reference without the scheme.
func (r *Reference) ImageReference() string {
	if r.Tag == "" {
		return fmt.Sprintf("%s/%s", r.Registry, r.Repository)
	}
	return fmt.Sprintf("%s/%s:%s", r.Registry, r.Repository, r.Tag)
}

// WithTag returns a copy of the reference with tag.
func (r *Reference) WithTag(tag string) *Reference {
	cp := *r
	cp.Tag = tag
	return &cp
}

// ValidateRegistryReference checks that registry and repository form a valid
// image name. A leading http:// or https:// on registry is ignored.
func ValidateRegistryReference(registry, repository string) error {
	name := stripProtocol(registry) + "/" + repository
	ref, err := reference.ParseNormalizedNamed(name)
	if err != nil {
		return apperrors.WrapWithContext(apperrors.ErrCodeInvalidRequest,
			"invalid registry reference", err, map[string]any{"registry": registry, "repository": repository})
	}
	if reference.Path(ref) != repository {
		return apperrors.NewWithContext(apperrors.ErrCodeInvalidRequest,
			"repository is not a plain path", map[string]any{"registry": registry, "repository": repository})
	}
	return nil
}

// stripProtocol removes an http:// or https:// prefix from a registry URL.
func stripProtocol(registry string) string {
	registry = strings.TrimPrefix(registry, "https://")
	registry = strings.TrimPrefix(registry, "http://")
	return registry
}
