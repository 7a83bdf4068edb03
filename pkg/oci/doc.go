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

// Package oci publishes the snapshot archive directory to an OCI registry.
//
// Each numbered *.tar.gz archive becomes one layer of an OCI 1.1 artifact
// with artifact type "application/vnd.nvidia.cmtsmon.archive":
//
//	ref, err := oci.ParseReference("oci://ghcr.io/acme/cmts-archive:2025-06")
//	if err != nil {
//	    return err
//	}
//	res, err := oci.Push(ctx, oci.PushOptions{SourceDir: "archive", Reference: ref})
//
// Credentials come from the Docker configuration (~/.docker/config.json) via
// the ORAS credentials package. PlainHTTP and InsecureTLS support local
// development registries.
package oci
