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

// Package client builds the Kubernetes client used by the ConfigMap sink.
//
// The shared client is created once and cached. Configuration is discovered
// from, in order: an explicit kubeconfig path, the KUBECONFIG environment
// variable, ~/.kube/config, and finally the in-cluster service account.
//
//	clientset, cfg, err := client.GetKubeClient()
//	if err != nil {
//	    return fmt.Errorf("failed to get kubernetes client: %w", err)
//	}
//
// Requests carry the cmtsmon user agent and a modest client-side rate limit
// so periodic publication never competes with cluster workloads.
package client
