package plugins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"
)

func TestBridgeFunction_RequiredParams(t *testing.T) {
	tests := []struct {
		name   string
		params []Param
		want   []Param
	}{
		{name: "none", params: nil, want: nil},
		{name: "activity", params: []Param{ParamActivity}, want: []Param{ParamActivity}},
		{name: "context", params: []Param{ParamContext}, want: []Param{ParamContext}},
		{name: "fixed order", params: []Param{ParamContext, ParamActivity}, want: []Param{ParamActivity, ParamContext}},
		{name: "duplicates collapse", params: []Param{ParamActivity, ParamActivity}, want: []Param{ParamActivity}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn := BridgeFunction{Name: "A.B", Android: "a.B.c", AndroidParams: tt.params}
			assert.Equal(t, tt.want, fn.RequiredParams())
		})
	}
}

func TestMetaData_Attribute(t *testing.T) {
	tests := []struct {
		name      string
		meta      MetaData
		wantKey   string
		wantValue string
		wantOK    bool
	}{
		{name: "resource wins over value", meta: MetaData{Name: "n", Value: "v", Resource: "@xml/r"}, wantKey: "resource", wantValue: "@xml/r", wantOK: true},
		{name: "string value", meta: MetaData{Name: "n", Value: "v"}, wantKey: "value", wantValue: "v", wantOK: true},
		{name: "true", meta: MetaData{Name: "n", Value: true}, wantKey: "value", wantValue: "true", wantOK: true},
		{name: "false", meta: MetaData{Name: "n", Value: false}, wantKey: "value", wantValue: "false", wantOK: true},
		{name: "number", meta: MetaData{Name: "n", Value: 42}, wantKey: "value", wantValue: "42", wantOK: true},
		{name: "name only", meta: MetaData{Name: "n"}, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, value, ok := tt.meta.Attribute()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantKey, key)
			assert.Equal(t, tt.wantValue, value)
		})
	}
}

func TestService_UnmarshalBothSpellings(t *testing.T) {
	var svc Service
	err := yaml.Unmarshal([]byte(`
name: com.example.Svc
exported: true
meta-data:
  - {name: a, value: "1"}
intent_filters:
  - {action: com.example.A}
intent-filters:
  - {action: com.example.B}
`), &svc)
	assert.NoError(t, err)
	assert.Equal(t, "com.example.Svc", svc.Name)
	assert.True(t, svc.Exported)
	assert.Len(t, svc.MetaData, 1)
	assert.Len(t, svc.IntentFilters, 2)
}

func TestDependencyScopes_Unmarshal(t *testing.T) {
	var cfg AndroidConfig
	err := yaml.Unmarshal([]byte(`
dependencies:
  implementation: [a:b:1, c:d:2]
  api: e:f:3
`), &cfg)
	assert.NoError(t, err)
	assert.Equal(t, DependencyScopes{
		{Scope: "implementation", Coordinates: []string{"a:b:1", "c:d:2"}},
		{Scope: "api", Coordinates: []string{"e:f:3"}},
	}, cfg.Dependencies)
}
