package observability

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type alertRule struct {
	Alert       string            `yaml:"alert"`
	Expr        string            `yaml:"expr"`
	For         string            `yaml:"for"`
	Labels      map[string]string `yaml:"labels"`
	Annotations map[string]string `yaml:"annotations"`
}

type alertGroup struct {
	Name  string      `yaml:"name"`
	Rules []alertRule `yaml:"rules"`
}

type ruleFile struct {
	Groups []alertGroup `yaml:"groups"`
}

func TestLedgerAlertRules(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "deploy", "prometheus", "alerts", "ledger.yml"))
	require.NoError(t, err)

	var rules ruleFile
	require.NoError(t, yaml.Unmarshal(data, &rules))
	require.Len(t, rules.Groups, 1)
	group := rules.Groups[0]
	require.Equal(t, "ledger", group.Name)

	expected := map[string]struct {
		severity string
		runbook  string
	}{
		"HighErrorRate":            {severity: "critical", runbook: "docs/runbook-ledger.md#high-error-rate"},
		"LedgerIntegrityBreach":    {severity: "critical", runbook: "docs/runbook-ledger.md#ledger-integrity-breach"},
		"FraudAlertSpike":          {severity: "warning", runbook: "docs/runbook-ledger.md#fraud-alert-spike"},
		"RecurringInvoiceFailures": {severity: "warning", runbook: "docs/runbook-ledger.md#recurring-invoice-failures"},
		"JobFailures":              {severity: "warning", runbook: "docs/runbook-ledger.md#job-failures"},
	}
	require.Len(t, group.Rules, len(expected))

	for _, rule := range group.Rules {
		want, ok := expected[rule.Alert]
		require.True(t, ok, "unexpected rule %q", rule.Alert)
		require.Equal(t, want.severity, rule.Labels["severity"], rule.Alert)
		require.Equal(t, want.runbook, rule.Annotations["runbook"], rule.Alert)
		require.NotEmpty(t, rule.Annotations["summary"], rule.Alert)
		require.NotEmpty(t, rule.Annotations["description"], rule.Alert)
		require.NotEmpty(t, rule.Expr, rule.Alert)
		require.NotEmpty(t, rule.For, rule.Alert)
	}
}
