package logging

import (
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
)

// Attribute keys shared by every component that logs.
const (
	KeyOperation    = "operation"
	KeyNamespace    = "namespace"
	KeyResourceType = "resource_type"
	KeyResourceName = "resource_name"
	KeyKubeContext  = "kube_context"
	KeyDuration     = "duration"
	KeyStatus       = "status"
	KeyError        = "error"
	KeyHost         = "host"
	KeyTool         = "tool"
	KeyDryRun       = "dry_run"
	KeyCode         = "code"
)

// Status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusDenied  = "denied"
)

// Output formats accepted by NewLogger.
const (
	FormatText = "text"
	FormatJSON = "json"
)

var ipv4Regex = regexp.MustCompile(`\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}`)

// Matches full, compressed and bracketed IPv6 forms.
var ipv6Regex = regexp.MustCompile(`\[?([0-9a-fA-F]{0,4}:){2,7}[0-9a-fA-F]{0,4}\]?`)

// NewLogger builds a slog.Logger writing to w in the given format.
// Unknown formats fall back to text.
func NewLogger(w io.Writer, format string, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case FormatJSON:
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// WithOperation returns a logger with the operation attribute set.
func WithOperation(logger *slog.Logger, operation string) *slog.Logger {
	return logger.With(slog.String(KeyOperation, operation))
}

// WithTool returns a logger with the tool attribute set.
func WithTool(logger *slog.Logger, tool string) *slog.Logger {
	return logger.With(slog.String(KeyTool, tool))
}

// WithKubeContext returns a logger with the kubeconfig context attribute set.
func WithKubeContext(logger *slog.Logger, name string) *slog.Logger {
	return logger.With(slog.String(KeyKubeContext, name))
}

func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

func Namespace(ns string) slog.Attr {
	return slog.String(KeyNamespace, ns)
}

func ResourceType(rt string) slog.Attr {
	return slog.String(KeyResourceType, rt)
}

func ResourceName(name string) slog.Attr {
	return slog.String(KeyResourceName, name)
}

func KubeContext(name string) slog.Attr {
	return slog.String(KeyKubeContext, name)
}

func Status(status string) slog.Attr {
	return slog.String(KeyStatus, status)
}

func DryRun(dryRun bool) slog.Attr {
	return slog.Bool(KeyDryRun, dryRun)
}

// Code returns a slog attribute for a machine-readable denial or error code.
func Code(code string) slog.Attr {
	return slog.String(KeyCode, code)
}

// Err returns a slog attribute for an error. A nil error yields an empty value.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

// SanitizedErr is Err with IP addresses redacted. Use it for errors coming
// back from the API server, which often embed its address.
func SanitizedErr(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, SanitizeHost(err.Error()))
}

// Host returns a slog attribute for a host with IP addresses sanitized.
func Host(host string) slog.Attr {
	return slog.String(KeyHost, SanitizeHost(host))
}

// SanitizeHost redacts IPv4 and IPv6 addresses while keeping hostnames,
// schemes and ports.
//
//   - "https://192.168.1.100:6443" -> "https://<redacted-ip>:6443"
//   - "https://api.cluster.example.com:6443" -> unchanged
//   - "2001:db8::1" -> "<redacted-ip>"
//   - "" -> "<empty>"
func SanitizeHost(host string) string {
	if host == "" {
		return "<empty>"
	}

	redactIPs := func(s string) string {
		result := ipv4Regex.ReplaceAllString(s, "<redacted-ip>")
		return ipv6Regex.ReplaceAllString(result, "<redacted-ip>")
	}

	if !strings.Contains(host, "://") {
		return redactIPs(host)
	}

	parsed, err := url.Parse(host)
	if err != nil {
		return redactIPs(host)
	}

	if ipv4Regex.MatchString(parsed.Host) || ipv6Regex.MatchString(parsed.Host) {
		parsed.Host = redactIPs(parsed.Host)
		return parsed.String()
	}

	return host
}

// SanitizeSecretValue describes a secret value without exposing it.
func SanitizeSecretValue(value []byte) string {
	if len(value) == 0 {
		return "<empty>"
	}
	return fmt.Sprintf("[secret:%d bytes]", len(value))
}
