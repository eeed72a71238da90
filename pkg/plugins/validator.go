package plugins

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/sirupsen/logrus"
)

// AndroidSourceDir is where a plugin keeps its native sources, relative to
// the plugin directory
var AndroidSourceDir = filepath.Join("android", "src")

// Issue severities
const (
	SeverityHigh    = "high"
	SeverityWarning = "warning"
)

// SecurityIssue is one finding of a plugin security scan
type SecurityIssue struct {
	Severity       string
	Category       string // dangerous-permission, exported-service, hardcoded-secret
	Description    string
	File           string // Relative to the plugin directory
	Line           int
	Recommendation string
}

func (i SecurityIssue) String() string {
	if i.File == "" {
		return fmt.Sprintf("[%s] %s", i.Severity, i.Description)
	}
	return fmt.Sprintf("[%s] %s (%s:%d)", i.Severity, i.Description, i.File, i.Line)
}

// DangerousPermissions are the Android permissions with the dangerous
// protection level. Each one prompts the user at runtime.
var DangerousPermissions = map[string]bool{
	"android.permission.ACCESS_BACKGROUND_LOCATION": true,
	"android.permission.ACCESS_COARSE_LOCATION":     true,
	"android.permission.ACCESS_FINE_LOCATION":       true,
	"android.permission.BODY_SENSORS":               true,
	"android.permission.CALL_PHONE":                 true,
	"android.permission.CAMERA":                     true,
	"android.permission.POST_NOTIFICATIONS":         true,
	"android.permission.READ_CALENDAR":              true,
	"android.permission.READ_CALL_LOG":              true,
	"android.permission.READ_CONTACTS":              true,
	"android.permission.READ_EXTERNAL_STORAGE":      true,
	"android.permission.READ_MEDIA_AUDIO":           true,
	"android.permission.READ_MEDIA_IMAGES":          true,
	"android.permission.READ_MEDIA_VIDEO":           true,
	"android.permission.READ_PHONE_STATE":           true,
	"android.permission.READ_SMS":                   true,
	"android.permission.RECEIVE_SMS":                true,
	"android.permission.RECORD_AUDIO":               true,
	"android.permission.SEND_SMS":                   true,
	"android.permission.WRITE_CALENDAR":             true,
	"android.permission.WRITE_CONTACTS":             true,
	"android.permission.WRITE_EXTERNAL_STORAGE":     true,
}

var secretPatterns = []struct {
	name    string
	pattern *regexp.Regexp
}{
	{"API key", regexp.MustCompile(`(?i)(api[_-]?key|apikey)\s*[:=]\s*"([a-zA-Z0-9_\-]{20,})"`)},
	{"password", regexp.MustCompile(`(?i)(password|passwd|pwd)\s*[:=]\s*"([^"]{8,})"`)},
	{"token", regexp.MustCompile(`(?i)(token|auth[_-]?token)\s*[:=]\s*"([a-zA-Z0-9_\-]{20,})"`)},
	{"AWS key", regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
	{"Google API key", regexp.MustCompile(`AIza[0-9A-Za-z_\-]{35}`)},
	{"private key", regexp.MustCompile(`-----BEGIN (RSA |EC )?PRIVATE KEY-----`)},
}

// Validator scans plugins for risky declarations and leaked credentials
type Validator struct {
	logger *logrus.Logger
}

// NewValidator creates a new plugin validator
func NewValidator(logger *logrus.Logger) *Validator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Validator{logger: logger}
}

// ScanForSecurityIssues checks the plugin manifest and its native sources.
// Findings are advisory: they never stop a plugin from loading.
func (v *Validator) ScanForSecurityIssues(ctx context.Context, plugin *Plugin) ([]SecurityIssue, error) {
	if plugin == nil || plugin.Manifest == nil {
		return nil, fmt.Errorf("cannot scan plugin without manifest")
	}

	var issues []SecurityIssue
	issues = append(issues, v.checkPermissions(plugin.Manifest)...)
	issues = append(issues, v.checkExportedServices(plugin.Manifest)...)

	secrets, err := v.checkHardcodedSecrets(ctx, plugin.Path)
	if err != nil {
		return nil, err
	}
	issues = append(issues, secrets...)

	v.logger.WithFields(logrus.Fields{
		"plugin": plugin.Name,
		"issues": len(issues),
	}).Debug("Security scan completed")

	return issues, nil
}

func (v *Validator) checkPermissions(m *Manifest) []SecurityIssue {
	var issues []SecurityIssue
	for _, perm := range m.Android.Permissions {
		if DangerousPermissions[perm] {
			issues = append(issues, SecurityIssue{
				Severity:       SeverityWarning,
				Category:       "dangerous-permission",
				Description:    fmt.Sprintf("Requests dangerous permission %s", perm),
				Recommendation: "The app must request it at runtime before calling the plugin.",
			})
		}
	}
	return issues
}

// checkExportedServices flags services other apps can bind to without any
// intent filter narrowing what they accept
func (v *Validator) checkExportedServices(m *Manifest) []SecurityIssue {
	var issues []SecurityIssue
	for _, svc := range m.Android.Services {
		if svc.Exported && len(svc.IntentFilters) == 0 {
			issues = append(issues, SecurityIssue{
				Severity:       SeverityHigh,
				Category:       "exported-service",
				Description:    fmt.Sprintf("Service %s is exported without an intent filter", svc.Name),
				Recommendation: "Set exported: false unless other apps must start the service.",
			})
		}
	}
	return issues
}

// checkHardcodedSecrets looks for API keys, tokens and passwords in the
// plugin's native sources
func (v *Validator) checkHardcodedSecrets(ctx context.Context, pluginPath string) ([]SecurityIssue, error) {
	var issues []SecurityIssue

	root := filepath.Join(pluginPath, AndroidSourceDir)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ext := filepath.Ext(path); ext != ".kt" && ext != ".java" {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		relPath, _ := filepath.Rel(pluginPath, path)

		scanner := bufio.NewScanner(bytes.NewReader(content))
		scanner.Buffer(make([]byte, 64*1024), len(content)+1)
		for line := 1; scanner.Scan(); line++ {
			for _, secret := range secretPatterns {
				if secret.pattern.Match(scanner.Bytes()) {
					issues = append(issues, SecurityIssue{
						Severity:       SeverityHigh,
						Category:       "hardcoded-secret",
						Description:    fmt.Sprintf("Potential hardcoded %s", secret.name),
						File:           relPath,
						Line:           line,
						Recommendation: "Load secrets from the host app's configuration instead.",
					})
				}
			}
		}
		return scanner.Err()
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan sources of %s: %w", pluginPath, err)
	}
	return issues, nil
}

// HasHighSeverity reports whether any issue is high severity
func HasHighSeverity(issues []SecurityIssue) bool {
	for _, i := range issues {
		if i.Severity == SeverityHigh {
			return true
		}
	}
	return false
}
