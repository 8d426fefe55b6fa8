package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/dataloom-cli/internal/action"
	"github.com/KaramelBytes/dataloom-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/dataloom-cli/internal/config"
	"github.com/KaramelBytes/dataloom-cli/internal/result"
	"github.com/KaramelBytes/dataloom-cli/internal/table"
)

func TestSelectModelPrecedence(t *testing.T) {
	cfg := &cfgpkg.Global{DefaultModel: "cfg-model"}
	assert.Equal(t, "cli-model", selectModel(cfg, "cli-model"))
	assert.Equal(t, "cfg-model", selectModel(cfg, ""))
	cfg.DefaultModel = ""
	assert.Equal(t, "mistral:7b", selectModel(cfg, ""))
	assert.Equal(t, "mistral:7b", selectModel(nil, ""))
}

func TestBuildRuntimeProviders(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("DATALOOM_OLLAMA_HOST", "")
	cfg := &cfgpkg.Global{DefaultProvider: "ollama", OpenAIBaseURL: "http://127.0.0.1:9/v1"}

	cases := []struct {
		flag string
		want string
	}{
		{"", ai.ProviderOllama},
		{"local", ai.ProviderOllama},
		{"openai", ai.ProviderOpenAI},
		{"lmstudio", ai.ProviderOpenAI},
		{"openrouter", ai.ProviderOpenRouter},
		{"google", ai.ProviderGemini},
	}
	for _, tc := range cases {
		t.Run(tc.want+"/"+tc.flag, func(t *testing.T) {
			rt, name, err := buildRuntime(cfg, runtimeOptions{ProviderFlag: tc.flag})
			require.NoError(t, err)
			assert.NotNil(t, rt)
			assert.Equal(t, tc.want, name)
		})
	}

	_, name, err := buildRuntime(cfg, runtimeOptions{ProviderFlag: "nope"})
	require.Error(t, err)
	assert.Equal(t, "nope", name)
	assert.Contains(t, err.Error(), "provider not supported")
}

func TestBuildRuntimeDefaultsWithoutConfig(t *testing.T) {
	_, name, err := buildRuntime(nil, runtimeOptions{})
	require.NoError(t, err)
	assert.Equal(t, ai.ProviderOllama, name)
}

func TestLoadFlagsOptions(t *testing.T) {
	opt, err := loadFlags{Delimiter: "tab", Decimal: "comma", Thousands: "space", Sheet: "Q1", MaxRows: 10}.options()
	require.NoError(t, err)
	assert.Equal(t, table.LoadOptions{
		Delimiter:          '\t',
		DecimalSeparator:   ',',
		ThousandsSeparator: ' ',
		SheetName:          "Q1",
		MaxRows:            10,
	}, opt)

	for _, bad := range []loadFlags{{Delimiter: "|"}, {Decimal: "x"}, {Thousands: "_"}} {
		_, err := bad.options()
		assert.Error(t, err, "%+v", bad)
	}
}

func TestReadQueriesSkipsBlankAndComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q.txt")
	require.NoError(t, os.WriteFile(path, []byte("# header\nhistogram of Age\n\n  summary  \n#skip\n"), 0o644))
	qs, err := readQueries(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"histogram of Age", "summary"}, qs)

	_, err = readQueries(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestWriteResult(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeResult(result.Data(map[string]float64{"Age": 33}), outputOptions{Writer: &buf}))
	assert.Equal(t, "Age: 33\n", buf.String())

	buf.Reset()
	out := filepath.Join(t.TempDir(), "nested", "res.json")
	require.NoError(t, writeResult(result.Plot("/tmp/p.png"), outputOptions{JSON: true, OutputPath: out, Writer: &buf}))
	var printed map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &printed))
	assert.Equal(t, map[string]any{"type": "plot", "value": "/tmp/p.png"}, printed)

	saved, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"plot","value":"/tmp/p.png"}`, string(saved))
}

func TestMask(t *testing.T) {
	assert.Equal(t, "", mask(""))
	assert.Equal(t, "******", mask("abc"))
	assert.Equal(t, "sk-****xyz", mask("sk-123456xyz"))
}

func TestInterpretation(t *testing.T) {
	assert.Equal(t, "histogram (x=Age)", interpretation(action.Descriptor{Action: "histogram", X: "Age"}))
	assert.Equal(t, "scatter plot (x=Age, y=Sales)", interpretation(action.Descriptor{Action: "scatter plot", X: "Age", Y: "Sales"}))
	assert.Equal(t, "summary", interpretation(action.Descriptor{Action: "summary"}))
}
