package k8s

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/tools/remotecommand"
	utilexec "k8s.io/client-go/util/exec"
)

// PodManager implementation

func (c *kubernetesClient) ListPods(ctx context.Context, namespace string, opts ListOptions) (*corev1.PodList, error) {
	c.logOperation("list", namespace, "Pod", "")

	clientset, err := c.getClientset()
	if err != nil {
		return nil, err
	}

	pods, err := clientset.CoreV1().Pods(namespace).List(ctx, opts.toMeta())
	if err != nil {
		return nil, upstream("list", describe("Pod", namespace, ""), err)
	}
	return pods, nil
}

func (c *kubernetesClient) GetPod(ctx context.Context, namespace, name string) (*corev1.Pod, error) {
	c.logOperation("get", namespace, "Pod", name)

	clientset, err := c.getClientset()
	if err != nil {
		return nil, err
	}

	pod, err := clientset.CoreV1().Pods(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, upstream("get", describe("Pod", namespace, name), err)
	}
	return pod, nil
}

// ListPodEvents returns the events whose involved object is the named pod,
// ordered by last occurrence.
func (c *kubernetesClient) ListPodEvents(ctx context.Context, namespace, name string) ([]corev1.Event, error) {
	clientset, err := c.getClientset()
	if err != nil {
		return nil, err
	}

	eventList, err := clientset.CoreV1().Events(namespace).List(ctx, metav1.ListOptions{
		FieldSelector: fmt.Sprintf("involvedObject.name=%s", name),
	})
	if err != nil {
		return nil, upstream("list", describe("Event", namespace, ""), err)
	}

	// The field selector is not honoured by every backend.
	events := make([]corev1.Event, 0, len(eventList.Items))
	for _, ev := range eventList.Items {
		if ev.InvolvedObject.Name == name {
			events = append(events, ev)
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].LastTimestamp.Before(&events[j].LastTimestamp)
	})

	return events, nil
}

// GetLogs retrieves logs from a pod container.
func (c *kubernetesClient) GetLogs(ctx context.Context, namespace, podName, containerName string, opts LogOptions) (io.ReadCloser, error) {
	c.logOperation("logs", namespace, "Pod", podName)

	clientset, err := c.getClientset()
	if err != nil {
		return nil, err
	}

	logOpts := &corev1.PodLogOptions{
		Container:    containerName,
		Previous:     opts.Previous,
		Timestamps:   opts.Timestamps,
		SinceSeconds: opts.SinceSeconds,
		TailLines:    opts.TailLines,
	}

	logs, err := clientset.CoreV1().Pods(namespace).GetLogs(podName, logOpts).Stream(ctx)
	if err != nil {
		return nil, upstream("logs", describe("Pod", namespace, podName), err)
	}

	return logs, nil
}

// Exec executes a command inside a pod container.
func (c *kubernetesClient) Exec(ctx context.Context, namespace, podName, containerName string, command []string, opts ExecOptions) (*ExecResult, error) {
	c.logOperation("exec", namespace, "Pod", podName)

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultExecTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	executor, err := c.newExecutor(ctx, namespace, podName, &corev1.PodExecOptions{
		Container: containerName,
		Command:   command,
		Stdout:    true,
		Stderr:    true,
	})
	if err != nil {
		return nil, upstream("exec", describe("Pod", namespace, podName), err)
	}

	var stdout, stderr bytes.Buffer
	err = executor.StreamWithContext(ctx, remotecommand.StreamOptions{
		Stdout: &stdout,
		Stderr: &stderr,
	})

	result := &ExecResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		result.ExitCode = exitCode(err)
		if result.Stderr == "" {
			result.Stderr = err.Error()
		}
		c.debug("exec finished with error", "namespace", namespace, "name", podName, "exit_code", result.ExitCode)
	}

	return result, nil
}

// exitCode extracts the remote process status from an exec stream error.
// Errors without a status map to 1.
func exitCode(err error) int {
	var exitErr utilexec.ExitError
	if errors.As(err, &exitErr) && exitErr.Exited() {
		return exitErr.ExitStatus()
	}
	return 1
}
