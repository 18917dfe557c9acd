package deployments

import (
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

type ruleFile struct {
	Groups []struct {
		Name  string `yaml:"name"`
		Rules []struct {
			Record string            `yaml:"record"`
			Alert  string            `yaml:"alert"`
			Expr   string            `yaml:"expr"`
			Labels map[string]string `yaml:"labels"`
		} `yaml:"rules"`
	} `yaml:"groups"`
}

// Metric families the service registers.
var exportedMetrics = map[string]struct{}{
	"querypilot_http_requests_total":           {},
	"querypilot_http_request_duration_seconds": {},
	"querypilot_http_requests_in_flight":       {},
	"querypilot_questions_total":               {},
	"querypilot_sql_rejections_total":          {},
	"querypilot_query_execution_seconds":       {},
	"querypilot_translation_seconds":           {},
	"querypilot_query_log_entries":             {},
}

var metricRef = regexp.MustCompile(`\bquerypilot_[a-z_]+`)

func TestPrometheusRulesParseAndReferenceKnownMetrics(t *testing.T) {
	var rules ruleFile
	readYAML(t, filepath.Join("observability", "prometheus", "querypilot_rules.yaml"), &rules)

	records := map[string]struct{}{}
	alerts := map[string]struct{}{}
	for _, group := range rules.Groups {
		for _, rule := range group.Rules {
			if strings.TrimSpace(rule.Expr) == "" {
				t.Fatalf("group %s has a rule without expr", group.Name)
			}
			if rule.Record != "" {
				records[rule.Record] = struct{}{}
			}
			if rule.Alert != "" {
				alerts[rule.Alert] = struct{}{}
				if rule.Labels["severity"] == "" {
					t.Fatalf("alert %s has no severity", rule.Alert)
				}
			}
			for _, ref := range metricRef.FindAllString(rule.Expr, -1) {
				base := strings.TrimSuffix(ref, "_bucket")
				if _, ok := exportedMetrics[base]; !ok {
					t.Fatalf("rule %s%s references unknown metric %q", rule.Record, rule.Alert, ref)
				}
			}
		}
	}

	for _, alert := range []string{
		"QueryPilotHTTPErrorRateHigh",
		"QueryPilotExecutionLatencyP95High",
		"QueryPilotTranslationErrors",
		"QueryPilotRejectionRatioHigh",
	} {
		if _, ok := alerts[alert]; !ok {
			t.Fatalf("rules missing alert %q", alert)
		}
	}
	if _, ok := records["querypilot:http_error_rate_5m"]; !ok {
		t.Fatal("rules missing http error rate record")
	}
}

func TestPrometheusScrapeExampleTargetsMetricsEndpoint(t *testing.T) {
	var scrape struct {
		RuleFiles     []string `yaml:"rule_files"`
		ScrapeConfigs []struct {
			JobName     string `yaml:"job_name"`
			MetricsPath string `yaml:"metrics_path"`
		} `yaml:"scrape_configs"`
	}
	readYAML(t, filepath.Join("observability", "prometheus", "prometheus-scrape.example.yaml"), &scrape)

	if len(scrape.RuleFiles) != 1 || scrape.RuleFiles[0] != "querypilot_rules.yaml" {
		t.Fatalf("rule_files = %v", scrape.RuleFiles)
	}
	if len(scrape.ScrapeConfigs) != 1 {
		t.Fatalf("scrape_configs = %+v", scrape.ScrapeConfigs)
	}
	job := scrape.ScrapeConfigs[0]
	if job.JobName != "querypilot-api" || job.MetricsPath != "/metrics" {
		t.Fatalf("scrape job = %+v", job)
	}
}

func readYAML(t *testing.T, relative string, out any) {
	t.Helper()
	content, err := os.ReadFile(filepath.Join(deploymentsDir(t), relative))
	if err != nil {
		t.Fatalf("read %s: %v", relative, err)
	}
	if err := yaml.Unmarshal(content, out); err != nil {
		t.Fatalf("parse %s: %v", relative, err)
	}
}

func deploymentsDir(t *testing.T) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	return filepath.Dir(filename)
}
