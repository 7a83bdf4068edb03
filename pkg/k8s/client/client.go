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

package client

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"
)

// UserAgent identifies cmtsmon requests in API server audit logs.
const UserAgent = "cmtsmon"

// Client-side rate limits for the publication client.
const (
	DefaultQPS   = 5
	DefaultBurst = 10
)

// Interface is an alias for kubernetes.Interface so sinks can be tested with
// fake clientsets.
type Interface = kubernetes.Interface

var (
	clientOnce   sync.Once
	cachedClient Interface
	cachedConfig *rest.Config
	clientErr    error
)

// GetKubeClient returns the shared client, creating it on first call.
func GetKubeClient() (Interface, *rest.Config, error) {
	clientOnce.Do(func() {
		cachedClient, cachedConfig, clientErr = BuildKubeClient("")
	})
	return cachedClient, cachedConfig, clientErr
}

// BuildKubeClient creates a client from kubeconfig, bypassing the cache.
// An empty path uses KUBECONFIG, then ~/.kube/config, then in-cluster
// configuration.
func BuildKubeClient(kubeconfig string) (Interface, *rest.Config, error) {
	path := ResolveKubeconfig(kubeconfig)

	var (
		config *rest.Config
		err    error
	)
	if path == "" {
		config, err = rest.InClusterConfig()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get in-cluster config: %w", err)
		}
	} else {
		config, err = clientcmd.BuildConfigFromFlags("", path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build kube config from %s: %w", path, err)
		}
	}

	config.UserAgent = UserAgent
	if config.QPS == 0 {
		config.QPS = DefaultQPS
	}
	if config.Burst == 0 {
		config.Burst = DefaultBurst
	}

	cs, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}

	slog.Debug("kubernetes client created", "host", config.Host, "kubeconfig", path)
	return cs, config, nil
}

// ResolveKubeconfig returns the kubeconfig path that BuildKubeClient would
// use, or "" for in-cluster configuration.
func ResolveKubeconfig(kubeconfig string) string {
	if kubeconfig != "" {
		return kubeconfig
	}
	if env := os.Getenv("KUBECONFIG"); env != "" {
		return env
	}
	home := filepath.Join(homedir.HomeDir(), ".kube", "config")
	if _, err := os.Stat(home); err == nil {
		return home
	}
	return ""
}
