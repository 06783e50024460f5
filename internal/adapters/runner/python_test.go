package runner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapScript_IndentsUserCode(t *testing.T) {
	script := wrapScript("x = df['销售额'].sum()\nprint(x)", "/data/sales.xlsx")

	assert.Contains(t, script, "import pandas as pd")
	assert.Contains(t, script, `df = pd.read_excel("/data/sales.xlsx")`)
	assert.Contains(t, script, "try:\n")
	assert.Contains(t, script, "    x = df['销售额'].sum()\n")
	assert.Contains(t, script, "    print(x)\n")
	assert.Contains(t, script, "except Exception as e:")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(script), "sys.exit(1)"))
}

func TestLoaderFor(t *testing.T) {
	assert.Equal(t, "pd.read_csv", loaderFor("/tmp/data.csv"))
	assert.Equal(t, "pd.read_csv", loaderFor("/tmp/DATA.CSV"))
	assert.Equal(t, "pd.read_excel", loaderFor("/tmp/data.xlsx"))
	assert.Equal(t, "pd.read_excel", loaderFor("/tmp/data"))
}

func TestNewPythonRunner_Defaults(t *testing.T) {
	r := NewPythonRunner("", 0)

	assert.Equal(t, "python3", r.pythonPath)
	assert.Equal(t, "30s", r.timeout.String())
}
