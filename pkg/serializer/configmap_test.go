package serializer

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/NVIDIA/cmts-monitor/pkg/header"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

func TestParseConfigMapURI(t *testing.T) {
	tests := []struct {
		name          string
		uri           string
		wantNamespace string
		wantName      string
		wantErr       bool
	}{
		{name: "valid", uri: "cm://monitoring/cmts-recent", wantNamespace: "monitoring", wantName: "cmts-recent"},
		{name: "spaces", uri: "cm://monitoring / cmts-recent ", wantNamespace: "monitoring", wantName: "cmts-recent"},
		{name: "missing scheme", uri: "monitoring/cmts-recent", wantErr: true},
		{name: "wrong scheme", uri: "http://monitoring/cmts-recent", wantErr: true},
		{name: "missing name", uri: "cm://monitoring/", wantErr: true},
		{name: "missing namespace", uri: "cm:///cmts-recent", wantErr: true},
		{name: "missing separator", uri: "cm://monitoring", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ns, name, err := ParseConfigMapURI(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantNamespace, ns)
			assert.Equal(t, tt.wantName, name)
		})
	}
}

type testReport struct {
	header.Header `json:",inline" yaml:",inline"`
	Devices       int `json:"devices" yaml:"devices"`
}

func TestConfigMapWriter_Serialize(t *testing.T) {
	cs := fake.NewClientset()
	w := NewConfigMapWriter("monitoring", "cmts-recent", FormatJSON, WithKubeClient(cs))
	assert.Equal(t, "recent.json", w.DataKey())

	data := map[string]any{"1700000000": map[string]any{"Room": []int{101}}}
	require.NoError(t, w.Serialize(context.Background(), data))

	cm, err := cs.CoreV1().ConfigMaps("monitoring").Get(context.Background(), "cmts-recent", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "cmtsmon", cm.Labels["app.kubernetes.io/name"])
	assert.Equal(t, "snapshot", cm.Labels["app.kubernetes.io/component"])
	assert.Equal(t, "json", cm.Data["format"])
	assert.NotEmpty(t, cm.Data["timestamp"])

	var got map[string]map[string][]int
	require.NoError(t, json.Unmarshal([]byte(cm.Data["recent.json"]), &got))
	assert.Equal(t, []int{101}, got["1700000000"]["Room"])
}

func TestConfigMapWriter_HeaderMetadata(t *testing.T) {
	cs := fake.NewClientset()
	w := NewConfigMapWriter("monitoring", "cmts-report", FormatYAML, WithKubeClient(cs), WithDataKey("report"))

	r := testReport{
		Header: *header.New(
			header.WithKind(header.KindIngestResult),
			header.WithMetadata("version", "v1.0.0"),
			header.WithMetadata("timestamp", "2025-06-01T12:00:00Z"),
		),
		Devices: 3,
	}
	require.NoError(t, w.Serialize(context.Background(), r))

	cm, err := cs.CoreV1().ConfigMaps("monitoring").Get(context.Background(), "cmts-report", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "ingestresult", cm.Labels["app.kubernetes.io/component"])
	assert.Equal(t, "v1.0.0", cm.Labels["app.kubernetes.io/version"])
	assert.Equal(t, "2025-06-01T12:00:00Z", cm.Data["timestamp"])
	assert.Contains(t, cm.Data["report.yaml"], "devices: 3")
	assert.NoError(t, w.Close())
}

func TestConfigMapWriter_UpdatesExisting(t *testing.T) {
	existing := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{Name: "cmts-recent", Namespace: "monitoring"},
		Data:       map[string]string{"recent.json": "{}"},
	}
	cs := fake.NewClientset(existing)
	w := NewConfigMapWriter("monitoring", "cmts-recent", FormatJSON, WithKubeClient(cs))

	require.NoError(t, w.Serialize(context.Background(), map[string]any{"1700000000": map[string]any{}}))

	cm, err := cs.CoreV1().ConfigMaps("monitoring").Get(context.Background(), "cmts-recent", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Contains(t, cm.Data["recent.json"], "1700000000")
	assert.Equal(t, "json", cm.Data["format"])
}

func TestConfigMapWriter_HeaderMetadataPointer(t *testing.T) {
	cs := fake.NewClientset()
	w := NewConfigMapWriter("monitoring", "cmts-archive", FormatJSON, WithKubeClient(cs))

	r := &testReport{Header: *header.New(
		header.WithKind(header.KindArchiveResult),
		header.WithMetadata("version", "v2.0.0"),
	)}
	require.NoError(t, w.Serialize(context.Background(), r))

	cm, err := cs.CoreV1().ConfigMaps("monitoring").Get(context.Background(), "cmts-archive", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "archiveresult", cm.Labels["app.kubernetes.io/component"])
	assert.Equal(t, "v2.0.0", cm.Labels["app.kubernetes.io/version"])
}
