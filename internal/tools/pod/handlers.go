package pod

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	corev1 "k8s.io/api/core/v1"

	"github.com/giantswarm/mcp-k8s-guard/internal/guard"
	"github.com/giantswarm/mcp-k8s-guard/internal/instrumentation"
	"github.com/giantswarm/mcp-k8s-guard/internal/k8s"
	"github.com/giantswarm/mcp-k8s-guard/internal/logging"
	"github.com/giantswarm/mcp-k8s-guard/internal/manifest"
	"github.com/giantswarm/mcp-k8s-guard/internal/server"
	"github.com/giantswarm/mcp-k8s-guard/internal/tools"
	"github.com/giantswarm/mcp-k8s-guard/internal/tools/output"
)

const (
	kindPod = "Pod"

	// MaxLogLines is how many trailing log lines pods.logs returns.
	MaxLogLines = 1000
	// DefaultTailLines is requested from the API server when the caller
	// gives no tailLines.
	DefaultTailLines = 200
	// maxConditions caps the pod conditions returned by pods.get.
	maxConditions = 5
)

// execBudget applies to pods.exec.
var execBudget = tools.StrictBudget

// Summary is one row of pods.listPods.
type Summary struct {
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
	Phase     string `json:"phase"`
	Node      string `json:"node"`
	Restarts  int32  `json:"restarts"`
	Age       string `json:"age"`
}

// Detail is the body of pods.get.
type Detail struct {
	Metadata       Metadata    `json:"metadata"`
	Status         Status      `json:"status"`
	Containers     []Container `json:"containers"`
	InitContainers []Container `json:"initContainers"`
	Events         []Event     `json:"events"`
}

// Metadata is the identifying part of a pod.
type Metadata struct {
	Name              string            `json:"name"`
	Namespace         string            `json:"namespace"`
	UID               string            `json:"uid"`
	CreationTimestamp string            `json:"creationTimestamp,omitempty"`
	Labels            map[string]string `json:"labels,omitempty"`
}

// Status is the observed state of a pod.
type Status struct {
	Phase      string                `json:"phase"`
	PodIP      string                `json:"podIP,omitempty"`
	HostIP     string                `json:"hostIP,omitempty"`
	Conditions []corev1.PodCondition `json:"conditions,omitempty"`
}

// Container is a container name and its image.
type Container struct {
	Name  string `json:"name"`
	Image string `json:"image"`
}

// Event is a condensed pod event.
type Event struct {
	Type    string `json:"type"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
	Age     string `json:"age,omitempty"`
}

// handleListPods handles pods.listPods.
func handleListPods(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	if err := tools.EnforceRateLimit(ctx, sc, ToolList, tools.DefaultBudget); err != nil {
		return tools.ErrorResult(err), nil
	}

	args := request.GetArguments()
	namespace, err := tools.OptionalString(args, "namespace")
	if err != nil {
		return tools.ErrorResult(err), nil
	}
	if namespace == "" {
		namespace = sc.GuardEngine().DefaultNamespace()
	}
	labelSelector, err := tools.OptionalString(args, "labelSelector")
	if err != nil {
		return tools.ErrorResult(err), nil
	}
	fieldSelector, err := tools.OptionalString(args, "fieldSelector")
	if err != nil {
		return tools.ErrorResult(err), nil
	}
	limit, err := tools.NonNegativeInt64(args, "limit")
	if err != nil {
		return tools.ErrorResult(err), nil
	}

	opts := k8s.ListOptions{LabelSelector: labelSelector, FieldSelector: fieldSelector}
	if limit != nil {
		opts.Limit = *limit
	}

	var pods *corev1.PodList
	err = tools.TrackK8sOperation(ctx, sc, instrumentation.OperationList, kindPod, namespace, func(ctx context.Context) error {
		var err error
		pods, err = sc.K8sClient().ListPods(ctx, namespace, opts)
		return err
	})
	if err != nil {
		return tools.ErrorResult(err), nil
	}

	items := pods.Items
	if opts.Limit > 0 && int64(len(items)) > opts.Limit {
		items = items[:opts.Limit]
	}

	now := time.Now()
	rows := make([]Summary, 0, len(items))
	for i := range items {
		rows = append(rows, summarize(&items[i], now))
	}

	return tools.JSONResult(map[string]interface{}{"pods": rows})
}

func summarize(pod *corev1.Pod, now time.Time) Summary {
	var restarts int32
	for _, cs := range pod.Status.ContainerStatuses {
		restarts += cs.RestartCount
	}

	phase := string(pod.Status.Phase)
	if phase == "" {
		phase = "Unknown"
	}

	return Summary{
		Name:      pod.Name,
		Namespace: pod.Namespace,
		Phase:     phase,
		Node:      pod.Spec.NodeName,
		Restarts:  restarts,
		Age:       output.Age(pod.CreationTimestamp.Time, now),
	}
}

// handleGetPod handles pods.get. Events are best effort: a failed event
// lookup leaves the list empty.
func handleGetPod(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	if err := tools.EnforceRateLimit(ctx, sc, ToolGet, tools.DefaultBudget); err != nil {
		return tools.ErrorResult(err), nil
	}

	args := request.GetArguments()
	namespace, err := tools.RequiredString(args, "namespace")
	if err != nil {
		return tools.ErrorResult(err), nil
	}
	name, err := tools.RequiredString(args, "name")
	if err != nil {
		return tools.ErrorResult(err), nil
	}

	var pod *corev1.Pod
	err = tools.TrackK8sOperation(ctx, sc, instrumentation.OperationGet, kindPod, namespace, func(ctx context.Context) error {
		var err error
		pod, err = sc.K8sClient().GetPod(ctx, namespace, name)
		return err
	})
	if err != nil {
		return tools.ErrorResult(err), nil
	}

	events, err := sc.K8sClient().ListPodEvents(ctx, namespace, name)
	if err != nil {
		sc.Logger().Warn("failed to list pod events",
			logging.KeyNamespace, namespace,
			logging.KeyResourceName, name,
			logging.SanitizedErr(err))
		events = nil
	}

	return tools.JSONResult(detail(pod, events, time.Now()))
}

func detail(pod *corev1.Pod, events []corev1.Event, now time.Time) Detail {
	d := Detail{
		Metadata: Metadata{
			Name:      pod.Name,
			Namespace: pod.Namespace,
			UID:       string(pod.UID),
			Labels:    pod.Labels,
		},
		Status: Status{
			Phase:  string(pod.Status.Phase),
			PodIP:  pod.Status.PodIP,
			HostIP: pod.Status.HostIP,
		},
		Containers:     containers(pod.Spec.Containers),
		InitContainers: containers(pod.Spec.InitContainers),
		Events:         []Event{},
	}
	if !pod.CreationTimestamp.IsZero() {
		d.Metadata.CreationTimestamp = pod.CreationTimestamp.UTC().Format(time.RFC3339)
	}

	conditions := pod.Status.Conditions
	if len(conditions) > maxConditions {
		conditions = conditions[len(conditions)-maxConditions:]
	}
	d.Status.Conditions = conditions

	if len(events) > k8s.MaxPodEvents {
		events = events[len(events)-k8s.MaxPodEvents:]
	}
	for _, ev := range events {
		d.Events = append(d.Events, Event{
			Type:    ev.Type,
			Reason:  ev.Reason,
			Message: ev.Message,
			Age:     output.Age(eventTime(ev), now),
		})
	}
	return d
}

func containers(in []corev1.Container) []Container {
	out := make([]Container, 0, len(in))
	for _, c := range in {
		out = append(out, Container{Name: c.Name, Image: c.Image})
	}
	return out
}

// eventTime picks the most specific timestamp an event carries.
func eventTime(ev corev1.Event) time.Time {
	switch {
	case !ev.EventTime.IsZero():
		return ev.EventTime.Time
	case !ev.LastTimestamp.IsZero():
		return ev.LastTimestamp.Time
	default:
		return ev.FirstTimestamp.Time
	}
}

// handleGetLogs handles pods.logs. Only the last MaxLogLines lines are kept.
func handleGetLogs(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	if err := tools.EnforceRateLimit(ctx, sc, ToolLogs, tools.DefaultBudget); err != nil {
		return tools.ErrorResult(err), nil
	}

	args := request.GetArguments()
	namespace, err := tools.RequiredString(args, "namespace")
	if err != nil {
		return tools.ErrorResult(err), nil
	}
	name, err := tools.RequiredString(args, "name")
	if err != nil {
		return tools.ErrorResult(err), nil
	}
	container, err := tools.OptionalString(args, "container")
	if err != nil {
		return tools.ErrorResult(err), nil
	}
	tailLines, err := tools.NonNegativeInt64(args, "tailLines")
	if err != nil {
		return tools.ErrorResult(err), nil
	}
	sinceSeconds, err := tools.NonNegativeInt64(args, "sinceSeconds")
	if err != nil {
		return tools.ErrorResult(err), nil
	}
	timestamps, err := tools.OptionalBool(args, "timestamps", false)
	if err != nil {
		return tools.ErrorResult(err), nil
	}

	if tailLines == nil {
		def := int64(DefaultTailLines)
		tailLines = &def
	}
	if sinceSeconds != nil && *sinceSeconds == 0 {
		sinceSeconds = nil
	}

	opts := k8s.LogOptions{
		Timestamps:   timestamps,
		SinceSeconds: sinceSeconds,
		TailLines:    tailLines,
	}

	var text string
	err = tools.TrackK8sOperation(ctx, sc, instrumentation.OperationLogs, kindPod, namespace, func(ctx context.Context) error {
		reader, err := sc.K8sClient().GetLogs(ctx, namespace, name, container, opts)
		if err != nil {
			return err
		}
		defer reader.Close()

		raw, err := io.ReadAll(reader)
		if err != nil {
			return &k8s.UpstreamError{Operation: "logs", Resource: kindPod + " " + namespace + "/" + name, Err: err}
		}
		text = lastLines(string(raw), MaxLogLines)
		return nil
	})
	if err != nil {
		return tools.ErrorResult(err), nil
	}

	return mcp.NewToolResultText(text), nil
}

// lastLines keeps the final n lines of text.
func lastLines(text string, n int) string {
	if text == "" {
		return ""
	}
	lines := strings.Split(text, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// handleExec handles pods.exec. It is guarded like a mutation because the
// command can change the container.
func handleExec(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	if err := tools.EnforceRateLimit(ctx, sc, ToolExec, execBudget); err != nil {
		return tools.ErrorResult(err), nil
	}

	args := request.GetArguments()
	namespace, err := tools.RequiredString(args, "namespace")
	if err != nil {
		return tools.ErrorResult(err), nil
	}
	name, err := tools.RequiredString(args, "name")
	if err != nil {
		return tools.ErrorResult(err), nil
	}

	err = tools.EnforceGuard(ctx, sc, guard.OperationContext{
		Operation: ToolExec,
		Namespace: namespace,
		Kind:      kindPod,
	})
	if err != nil {
		return tools.ErrorResult(err), nil
	}

	container, err := tools.OptionalString(args, "container")
	if err != nil {
		return tools.ErrorResult(err), nil
	}
	command, err := tools.StringSlice(args, "command")
	if err != nil {
		return tools.ErrorResult(err), nil
	}
	if len(command) == 0 {
		return tools.ErrorResult(manifest.NewValidationError("command", "command cannot be empty")), nil
	}
	timeoutSeconds, err := tools.NonNegativeInt64(args, "timeoutSeconds")
	if err != nil {
		return tools.ErrorResult(err), nil
	}

	opts := k8s.ExecOptions{}
	if timeoutSeconds != nil {
		opts.Timeout = time.Duration(*timeoutSeconds) * time.Second
	}

	var result *k8s.ExecResult
	err = tools.TrackK8sOperation(ctx, sc, instrumentation.OperationExec, kindPod, namespace, func(ctx context.Context) error {
		var err error
		result, err = sc.K8sClient().Exec(ctx, namespace, name, container, command, opts)
		return err
	})
	if err != nil {
		return tools.ErrorResult(err), nil
	}

	sc.Logger().Info("exec finished",
		logging.KeyNamespace, namespace,
		logging.KeyResourceName, name,
		"exit_code", result.ExitCode)

	return tools.JSONResult(result)
}
