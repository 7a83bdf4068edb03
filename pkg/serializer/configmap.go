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

package serializer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/NVIDIA/cmts-monitor/pkg/defaults"
	"github.com/NVIDIA/cmts-monitor/pkg/header"
	"github.com/NVIDIA/cmts-monitor/pkg/k8s/client"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	accorev1 "k8s.io/client-go/applyconfigurations/core/v1"
)

// ConfigMapURIScheme prefixes output paths that target a ConfigMap.
const ConfigMapURIScheme = "cm://"

const (
	fieldManager   = "cmtsmon"
	appName        = "cmtsmon"
	defaultDataKey = "recent"
)

// ConfigMapOption configures a ConfigMapWriter.
type ConfigMapOption func(*ConfigMapWriter)

// WithKubeClient sets the client used for the apply instead of the shared
// client from the k8s/client package.
func WithKubeClient(c client.Interface) ConfigMapOption {
	return func(w *ConfigMapWriter) {
		w.client = c
	}
}

// WithDataKey sets the base name of the data entry holding the document.
// The format extension is appended.
func WithDataKey(key string) ConfigMapOption {
	return func(w *ConfigMapWriter) {
		if key != "" {
			w.dataKey = key
		}
	}
}

// ConfigMapWriter publishes serialized documents to a Kubernetes ConfigMap
// using server-side apply.
type ConfigMapWriter struct {
	namespace string
	name      string
	format    Format
	dataKey   string
	client    client.Interface
}

// NewConfigMapWriter creates a ConfigMapWriter for namespace/name.
func NewConfigMapWriter(namespace, name string, format Format, opts ...ConfigMapOption) *ConfigMapWriter {
	w := &ConfigMapWriter{
		namespace: namespace,
		name:      name,
		format:    normalizeFormat(format),
		dataKey:   defaultDataKey,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// DataKey returns the ConfigMap data key the document is stored under.
func (w *ConfigMapWriter) DataKey() string {
	return w.dataKey + "." + w.format.Extension()
}

// Serialize applies a ConfigMap holding data. The ConfigMap carries:
//   - data.<key>.<ext>: the serialized document
//   - data.format: the format used
//   - data.timestamp: RFC 3339 time of the document, or of the write
func (w *ConfigMapWriter) Serialize(ctx context.Context, data any) error {
	writeCtx, cancel := context.WithTimeout(ctx, defaults.ConfigMapWriteTimeout)
	defer cancel()

	cs := w.client
	if cs == nil {
		c, config, err := client.GetKubeClient()
		if err != nil {
			return fmt.Errorf("failed to get kubernetes client: %w", err)
		}
		cs = c
		slog.Debug("configmap client", "host", config.Host, "auth_method", authMethod(config.BearerToken != "", config.CertData != nil, config.ExecProvider != nil))
	}

	content, err := Marshal(w.format, data)
	if err != nil {
		return fmt.Errorf("failed to serialize document: %w", err)
	}

	kind := "Snapshot"
	version := "unknown"
	timestamp := time.Now().UTC().Format(time.RFC3339)
	if h, ok := data.(interface {
		GetKind() header.Kind
		GetMetadata() map[string]string
	}); ok {
		if k := h.GetKind(); k != "" {
			kind = k.String()
		}
		if v := h.GetMetadata()["version"]; v != "" {
			version = v
		}
		if ts := h.GetMetadata()["timestamp"]; ts != "" {
			timestamp = ts
		}
	}

	cm := accorev1.ConfigMap(w.name, w.namespace).
		WithLabels(map[string]string{
			"app.kubernetes.io/name":      appName,
			"app.kubernetes.io/component": strings.ToLower(kind),
			"app.kubernetes.io/version":   version,
		}).
		WithData(map[string]string{
			w.DataKey(): string(content),
			"format":    string(w.format),
			"timestamp": timestamp,
		})

	slog.Info("applying ConfigMap",
		"namespace", w.namespace,
		"name", w.name,
		"format", w.format,
		"bytes", len(content))

	_, err = cs.CoreV1().ConfigMaps(w.namespace).Apply(writeCtx, cm, metav1.ApplyOptions{
		FieldManager: fieldManager,
		Force:        true,
	})
	if err != nil {
		return fmt.Errorf("failed to apply ConfigMap %s/%s: %w", w.namespace, w.name, err)
	}
	return nil
}

// Close is a no-op; ConfigMapWriter holds no resources.
func (w *ConfigMapWriter) Close() error {
	return nil
}

func authMethod(bearer, cert, exec bool) string {
	switch {
	case exec:
		return "exec"
	case bearer:
		return "bearer-token"
	case cert:
		return "cert"
	default:
		return "default"
	}
}

// ParseConfigMapURI splits a cm://namespace/name URI.
func ParseConfigMapURI(uri string) (namespace, name string, err error) {
	if !strings.HasPrefix(uri, ConfigMapURIScheme) {
		return "", "", fmt.Errorf("invalid ConfigMap URI: must start with %s", ConfigMapURIScheme)
	}

	parts := strings.SplitN(strings.TrimPrefix(uri, ConfigMapURIScheme), "/", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid ConfigMap URI format: expected %snamespace/name, got %s", ConfigMapURIScheme, uri)
	}

	namespace = strings.TrimSpace(parts[0])
	name = strings.TrimSpace(parts[1])

	if namespace == "" {
		return "", "", fmt.Errorf("invalid ConfigMap URI: namespace cannot be empty")
	}
	if name == "" {
		return "", "", fmt.Errorf("invalid ConfigMap URI: name cannot be empty")
	}
	return namespace, name, nil
}
